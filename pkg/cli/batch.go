package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/TechXTT/dbsession"
	"github.com/TechXTT/dbsession/internal/argfile"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		file           string
		commitInterval int
	)

	cmd := &cobra.Command{
		Use:   "batch SQL --file ARGS",
		Short: "Run a statement once per argument set, committing every --commit-interval sets",
		Long: `Run a statement once per argument set read from a .csv or .jsonl file.
A checkpoint commit is issued every --commit-interval sets and once more for
the remainder. Checkpoints committed before a failure stay committed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := argfile.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			interval := commitInterval
			if !cmd.Flags().Changed("commit-interval") {
				interval = a.cfg.CommitInterval
			}
			return a.withSession(cmd, func(ctx context.Context, s *dbsession.Session, out io.Writer) error {
				total, err := s.ExecuteBatch(ctx, args[0], interval, sets)
				if err != nil {
					return fmt.Errorf("after %d argument sets: %w", total, err)
				}
				fmt.Fprintln(out, total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV or JSON-lines file with one argument set per record")
	cmd.Flags().IntVar(&commitInterval, "commit-interval", 0, "Sets per checkpoint commit (default $DBSESSION_COMMIT_INTERVAL or 1000)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
