package main

import (
	"context"
	"flag"
	"log"
	"os"

	"filetap/internal/config"
	"filetap/internal/pipeline"
	"filetap/internal/singer"
	"filetap/internal/utils"
)

func main() {
	statePath := flag.String("state", "", "path to a state file from a previous run")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	state, err := singer.LoadState(*statePath)
	if err != nil {
		log.Fatal("Failed to load state:", err)
	}
	if err := state.Validate(cfg.StreamName); err != nil {
		log.Fatal("Failed to validate state:", err)
	}
	cursor, err := state.CursorFor(cfg.StreamName)
	if err != nil {
		log.Fatal("Failed to read bookmark from state:", err)
	}

	ctx := context.Background()
	pipe, err := pipeline.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize pipeline:", err)
	}

	writer := singer.NewWriter(os.Stdout)

	runID := utils.NewRunID()
	log.Printf("Starting run %s of stream %s from %s", runID, cfg.StreamName, cfg.Source.Path)

	result, err := pipe.Run(ctx, cursor, writer)
	if err != nil {
		log.Fatalf("Run %s failed: %v", runID, err)
	}

	if result.CursorUpdated {
		if err := writer.WriteState(cfg.StreamName, result.NextCursor); err != nil {
			log.Fatalf("Run %s failed to write state: %v", runID, err)
		}
	}

	log.Printf("Run %s completed: %d records", runID, result.RecordCount)
}
