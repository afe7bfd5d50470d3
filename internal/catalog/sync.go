package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/nmehra/assistantd/internal/runtime"
	"github.com/nmehra/assistantd/internal/storage"
)

// mcpProviderID marks runtime tools served by an MCP server.
const mcpProviderID = "model-context-protocol"

// runtimeSyncTimeout bounds one scheduled sync pass.
const runtimeSyncTimeout = 2 * time.Minute

// Syncer mirrors the runtime's catalog (models, MCP toolgroups, vector
// databases) into local storage so the API can serve them without a
// round trip, and so assistants can reference them by stable IDs.
type Syncer struct {
	db *storage.Database
	rt *runtime.Client
}

func NewSyncer(db *storage.Database, rt *runtime.Client) *Syncer {
	return &Syncer{db: db, rt: rt}
}

// SyncAll refreshes every catalog. Each catalog syncs independently;
// one failing does not stop the others.
func (s *Syncer) SyncAll(ctx context.Context) error {
	var firstErr error
	record := func(name string, err error) {
		if err == nil {
			return
		}
		log.Printf("[catalog] sync %s: %v", name, err)
		if firstErr == nil {
			firstErr = fmt.Errorf("sync %s: %w", name, err)
		}
	}

	record("model servers", s.SyncModelServers(ctx))
	record("mcp servers", s.SyncMCPServers(ctx))
	record("knowledge bases", s.SyncKnowledgeBases(ctx))
	return firstErr
}

// SyncModelServers registers every LLM the runtime serves and prunes
// entries the runtime no longer lists.
func (s *Syncer) SyncModelServers(ctx context.Context) error {
	models, err := s.rt.ListModels(ctx)
	if err != nil {
		return err
	}

	var keep []string
	for _, m := range models {
		if m.ModelType != "llm" {
			continue
		}
		err := s.db.UpsertModelServerByName(storage.ModelServer{
			ID:           uuid.NewString(),
			Name:         m.Identifier,
			ProviderName: m.ProviderID,
			ModelName:    m.Identifier,
			EndpointURL:  s.rt.BaseURL(),
		})
		if err != nil {
			return fmt.Errorf("upserting model %s: %w", m.Identifier, err)
		}
		keep = append(keep, m.Identifier)
	}

	removed, err := s.db.DeleteModelServersNotIn(keep)
	if err != nil {
		return err
	}
	log.Printf("[catalog] model servers: %d active, %d removed", len(keep), removed)
	return nil
}

// SyncMCPServers discovers MCP toolgroups via the runtime's tool list
// and prunes entries whose toolgroup disappeared.
func (s *Syncer) SyncMCPServers(ctx context.Context) error {
	tools, err := s.rt.ListTools(ctx)
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	var keep []string
	for _, t := range tools {
		if t.ProviderID != mcpProviderID || t.ToolgroupID == "" || seen[t.ToolgroupID] {
			continue
		}
		seen[t.ToolgroupID] = true

		endpoint := ""
		if v, ok := t.Metadata["endpoint"].(string); ok {
			endpoint = v
		}
		err := s.db.UpsertMCPServerByName(storage.MCPServer{
			ID:          uuid.NewString(),
			Name:        t.ToolgroupID,
			Title:       t.ToolgroupID,
			Description: nonEmpty(t.Description),
			EndpointURL: endpoint,
		})
		if err != nil {
			return fmt.Errorf("upserting mcp server %s: %w", t.ToolgroupID, err)
		}
		keep = append(keep, t.ToolgroupID)
	}

	removed, err := s.db.DeleteMCPServersNotIn(keep)
	if err != nil {
		return err
	}
	log.Printf("[catalog] mcp servers: %d active, %d removed", len(keep), removed)
	return nil
}

// SyncKnowledgeBases imports runtime vector databases that are not yet
// known locally. Vector databases provisioned outside this service are
// marked external. Locally created knowledge bases are never pruned.
func (s *Syncer) SyncKnowledgeBases(ctx context.Context) error {
	dbs, err := s.rt.ListVectorDBs(ctx)
	if err != nil {
		return err
	}

	added := 0
	for _, vdb := range dbs {
		existing, err := s.db.GetKnowledgeBaseByVectorDBName(vdb.Identifier)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		err = s.db.CreateKnowledgeBase(storage.KnowledgeBase{
			ID:             uuid.NewString(),
			Name:           vdb.Identifier,
			Version:        "1",
			EmbeddingModel: vdb.EmbeddingModel,
			ProviderID:     nonEmpty(vdb.ProviderID),
			VectorDBName:   vdb.Identifier,
			IsExternal:     true,
		})
		if err != nil {
			return fmt.Errorf("importing vector db %s: %w", vdb.Identifier, err)
		}
		added++
	}
	log.Printf("[catalog] knowledge bases: %d listed, %d imported", len(dbs), added)
	return nil
}

// Schedule runs SyncAll on the given cron schedule until stop is
// called. An empty spec disables scheduling.
func (s *Syncer) Schedule(spec string) (stop func(), err error) {
	if spec == "" {
		return func() {}, nil
	}
	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runtimeSyncTimeout)
		defer cancel()
		if err := s.SyncAll(ctx); err != nil {
			log.Printf("[catalog] scheduled sync: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	c.Start()
	return func() { c.Stop() }, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
