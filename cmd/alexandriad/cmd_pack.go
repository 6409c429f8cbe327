package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franalgaba/alexandria/internal/config"
	"github.com/franalgaba/alexandria/internal/embedding"
	"github.com/franalgaba/alexandria/internal/pack"
	"github.com/franalgaba/alexandria/internal/project"
	"github.com/franalgaba/alexandria/internal/render"
	"github.com/franalgaba/alexandria/internal/search"
	"github.com/franalgaba/alexandria/internal/staleness"
)

var (
	packLevel    string
	packQuery    string
	packFormat   string
	packKeywords string
	packHotIDs   string
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "assemble a progressive-disclosure context pack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		db, memStore, err := openStore(cfg)
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
		searchEngine := search.New(db, embedder)
		projectRoot := project.FindRoot(".")
		checker := staleness.NewChecker(projectRoot)
		assembler := pack.NewAssembler(memStore, searchEngine, checker)

		var keywords []string
		if packKeywords != "" {
			keywords = strings.Split(packKeywords, ",")
		}
		var hotIDs []string
		if packHotIDs != "" {
			hotIDs = strings.Split(packHotIDs, ",")
		}

		p, err := assembler.Assemble(ctx, pack.Level(packLevel), packQuery, keywords, hotIDs, timeNowUTC())
		if err != nil {
			return err
		}

		out, err := render.Render(p, render.Format(packFormat))
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	packCmd.Flags().StringVar(&packLevel, "level", "task", "disclosure level: minimal|task|deep")
	packCmd.Flags().StringVar(&packQuery, "query", "", "optional query to route through intent classification")
	packCmd.Flags().StringVar(&packFormat, "format", "yaml", "output format: yaml|json|text")
	packCmd.Flags().StringVar(&packKeywords, "keywords", "", "comma-separated project keywords for relevance filtering")
	packCmd.Flags().StringVar(&packHotIDs, "hot-ids", "", "comma-separated memory ids to force into the pack regardless of level")
}
