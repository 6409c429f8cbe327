package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franalgaba/alexandria/internal/config"
	"github.com/franalgaba/alexandria/internal/memory"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "list memories pending human review",
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

		pending, err := memStore.List(ctx, memory.ListFilter{ReviewStatus: memory.ReviewPending})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("nothing pending review")
			return nil
		}
		for _, m := range pending {
			fmt.Printf("%s  [%s/%s]  %s\n", m.ID[:8], m.ObjectType, m.ConfidenceTier, m.Content)
		}
		return nil
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "approve a pending memory by id or prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolvedMemory(args[0], func(ctx context.Context, ms *memory.Store, id string) error {
			_, err := ms.Approve(ctx, id)
			return err
		})
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject [id]",
	Short: "reject a pending memory by id or prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolvedMemory(args[0], func(ctx context.Context, ms *memory.Store, id string) error {
			_, err := ms.Reject(ctx, id)
			return err
		})
	},
}

func withResolvedMemory(idOrPrefix string, fn func(ctx context.Context, ms *memory.Store, id string) error) error {
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

	m, err := memStore.GetByPrefix(ctx, idOrPrefix)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no memory found matching %q", idOrPrefix)
	}
	return fn(ctx, memStore, m.ID)
}

func init() {
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
}
