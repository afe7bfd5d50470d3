package main

import (
	"fmt"
	"os"

	"github.com/nmehra/assistantd/internal/app"
	"github.com/nmehra/assistantd/internal/config"
	"github.com/nmehra/assistantd/internal/logging"
	"github.com/nmehra/assistantd/internal/storage"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cmd := "start"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "start":
		return runStart()
	case "version":
		fmt.Printf("assistantd %s\n", version)
		return 0
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println(`assistantd - virtual assistant backend

Usage:
  assistantd <command>

Commands:
  start     Start the server (default)
  version   Print version
  help      Show this help`)
}

func runStart() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		return 1
	}

	if cfg.LogDir != nil && *cfg.LogDir != "" {
		if err := logging.InitFileLogging(*cfg.LogDir); err != nil {
			fmt.Fprintf(os.Stderr, "logging init error: %v\n", err)
			return 1
		}
	} else {
		logging.InitConsoleLogging()
	}

	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "database error: %v\n", err)
		return 1
	}
	defer db.Close()

	if err := app.Run(cfg, db); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		return 1
	}
	return 0
}
