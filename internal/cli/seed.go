package cli

import (
	"acakata/internal/domain"
	pginfra "acakata/internal/infra/postgres"
	"acakata/internal/puzzle"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd loads a YAML corpus (or the built-in one) into the puzzles table.
func NewSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the puzzle corpus into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.Postgres.URL == "" {
				return errNoPostgres
			}

			var entries []domain.PuzzleEntry
			if file != "" {
				entries, err = puzzle.LoadCorpusFile(file)
			} else {
				entries, err = puzzle.Clean(puzzle.DefaultCorpus())
			}
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runMigrations(ctx, cfg, log); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := pginfra.SeedCorpus(ctx, pool, entries)
			if err != nil {
				return err
			}
			log.Info("corpus seeded", zap.Int("words", n))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML corpus file (default: built-in corpus)")
	return cmd
}
