package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/satty/internal/config"
	"github.com/ashureev/satty/internal/store"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired delegations from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			repo, err := store.NewSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			deleted, err := repo.DeleteExpiredDelegations(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("prune delegations: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired delegations\n", deleted)
			return err
		},
	}
}
