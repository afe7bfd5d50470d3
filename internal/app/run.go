package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmehra/assistantd/internal/catalog"
	"github.com/nmehra/assistantd/internal/chat"
	"github.com/nmehra/assistantd/internal/config"
	"github.com/nmehra/assistantd/internal/runtime"
	"github.com/nmehra/assistantd/internal/storage"
	"github.com/nmehra/assistantd/internal/web"
)

// Run wires everything together and serves until interrupted.
func Run(cfg *config.Config, db *storage.Database) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[app] shutting down...")
		cancel()
	}()

	apiKey := ""
	if cfg.RuntimeAPIKey != nil {
		apiKey = *cfg.RuntimeAPIKey
	}
	rt := runtime.NewClient(cfg.RuntimeURL, apiKey, time.Duration(cfg.RuntimeTimeout)*time.Second)
	log.Printf("[app] agent runtime: %s", cfg.RuntimeURL)

	syncer := catalog.NewSyncer(db, rt)
	if cfg.SyncOnStartup {
		// The runtime may still be coming up; a failed initial sync is
		// logged and retried on the next scheduled pass.
		syncCtx, syncCancel := context.WithTimeout(ctx, 2*time.Minute)
		if err := syncer.SyncAll(syncCtx); err != nil {
			log.Printf("[app] startup catalog sync: %v", err)
		}
		syncCancel()
	}

	stopSchedule, err := syncer.Schedule(cfg.SyncSchedule)
	if err != nil {
		return err
	}
	defer stopSchedule()

	ch := chat.New(db, rt, cfg.AgentInstructions, int(cfg.MaxTokens))

	if cfg.DevMode {
		log.Printf("[app] dev mode: requests run as %s (%s)", cfg.DevUserName, cfg.DevUserEmail)
	}

	return web.StartWebServer(ctx, cfg, db, rt, ch, syncer)
}
