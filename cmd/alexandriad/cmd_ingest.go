package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franalgaba/alexandria/internal/config"
	"github.com/franalgaba/alexandria/internal/embedding"
	"github.com/franalgaba/alexandria/internal/eventlog"
	"github.com/franalgaba/alexandria/internal/extractor"
	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/reviewer"
)

var (
	ingestSessionID string
	ingestEventType string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [content]",
	Short: "append an event to the log and run extraction/review over it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		content := args[0]

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		db, memStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := db.Conn().ExecContext(ctx,
			"INSERT OR IGNORE INTO sessions (id, started_at) VALUES (?, ?)", ingestSessionID, time.Now().UTC()); err != nil {
			return fmt.Errorf("ensure session row: %w", err)
		}

		log := eventlog.New(db, cfg.Store.InlineThresholdBytes)
		ev, err := log.Append(ctx, eventlog.AppendInput{
			SessionID: ingestSessionID,
			EventType: eventlog.EventType(ingestEventType),
			Content:   content,
		})
		if err != nil {
			return err
		}

		candidates := extractor.Extract(ev.ID, content, map[string]bool{})
		if len(candidates) == 0 {
			fmt.Println("no candidate memories extracted")
			return nil
		}

		embedder, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Embedding.Provider,
			OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
			OllamaModel:    cfg.Embedding.OllamaModel,
			GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
			GenAIModel:     cfg.Embedding.GenAIModel,
			Dimensions:     cfg.Embedding.Dimensions,
		})
		if err != nil {
			return err
		}
		merger := reviewer.NewMerger(memStore, embedder)
		queue := reviewer.NewQueue(memStore, merger, reviewer.NewSuperseder())

		pool, err := memStore.List(ctx, memory.ListFilter{Status: []memory.Status{memory.StatusActive}})
		if err != nil {
			return err
		}

		for _, c := range candidates {
			result, err := queue.Process(ctx, c, pool)
			if err != nil {
				return err
			}
			if result != nil {
				fmt.Printf("created/updated memory %s (%s)\n", result.ID, result.ObjectType)
			} else {
				fmt.Printf("queued for review: %s\n", c.Content)
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSessionID, "session", "", "session id this event belongs to")
	ingestCmd.Flags().StringVar(&ingestEventType, "type", "user_turn", "event type (tool_call|file_edit|user_turn|assistant_turn|error|test_result|command)")
	if err := ingestCmd.MarkFlagRequired("session"); err != nil {
		panic(err)
	}
}
