package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/pkg/store"
)

// statusCmd reports pending migrations and checksum mismatches without
// touching ClickHouse.
func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report pending migrations and checksum mismatches",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStatus(ctx, cmd)
		},
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	st := current
	cfg := st.Config

	journal, err := store.ReadJournal(cfg.MetaDir)
	if err != nil {
		return err
	}

	names, err := store.ListMigrations(cfg.MigrationsDir)
	if err != nil {
		return err
	}

	applied := journal.AppliedNames()
	var pending []string
	for _, name := range names {
		if !applied[name] {
			pending = append(pending, name)
		}
	}

	mismatches, err := store.FindChecksumMismatches(cfg.MigrationsDir, journal)
	if err != nil {
		return err
	}

	if st.JSONMode {
		return printJSON(map[string]any{
			"pending":               pending,
			"checksumMismatchCount": len(mismatches),
			"checksumMismatches":    mismatches,
			"appliedCount":          len(journal.Applied),
		})
	}

	if len(pending) == 0 {
		printf("No pending migrations.\n")
	} else {
		printf("Pending migrations:\n")
		for _, name := range pending {
			printf("  %s\n", name)
		}
	}

	if len(mismatches) == 0 {
		printf("No checksum mismatches.\n")
	} else {
		printf("Checksum mismatches:\n")
		for _, m := range mismatches {
			printf("  %s: journaled %s, recomputed %s\n", m.Name, m.JournaledSum, m.RecomputedSum)
		}
	}
	return nil
}
