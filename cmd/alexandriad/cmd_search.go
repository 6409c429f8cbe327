package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franalgaba/alexandria/internal/config"
	"github.com/franalgaba/alexandria/internal/embedding"
	"github.com/franalgaba/alexandria/internal/intent"
	"github.com/franalgaba/alexandria/internal/rerank"
	"github.com/franalgaba/alexandria/internal/search"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "run hybrid lexical+vector search, intent-routed and reranked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		query := args[0]

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		db, _, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

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
		engine := search.New(db, embedder)
		router := intent.NewRouter()
		classified, plan := router.Route(query)
		plan.Limit = searchLimit

		results, err := engine.SearchWithPlan(ctx, query, plan, "", timeNowUTC())
		if err != nil {
			return err
		}

		scored := rerank.Rerank(results, rerank.DefaultWeights, timeNowUTC())
		fmt.Printf("intent: %s\n", classified)
		for _, s := range scored {
			fmt.Printf("%.3f  [%s/%s]  %s\n", s.Composite, s.Result.Memory.ObjectType, s.Result.Memory.ConfidenceTier, s.Result.Memory.Content)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
}
