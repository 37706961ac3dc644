package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/TechXTT/dbsession"
	"github.com/TechXTT/dbsession/internal/argfile"
)

func newExecCmd(a *app) *cobra.Command {
	var generic bool

	cmd := &cobra.Command{
		Use:   `exec SQL [ARG...]`,
		Short: "Execute one statement and print the affected rows",
		Long: `Execute one statement and print the affected rows.
Arguments bind to the positional placeholders in order; \N binds NULL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *dbsession.Session, out io.Writer) error {
				var (
					n   int64
					err error
				)
				if generic {
					n, err = s.Execute(ctx, args[0], bindArgs(args[1:])...)
				} else {
					n, err = s.ExecuteUpdate(ctx, args[0], bindArgs(args[1:])...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&generic, "generic", false, "Run as a generic execute; prints 0 for statements returning rows")
	return cmd
}

func bindArgs(raw []string) []any {
	if len(raw) == 0 {
		return nil
	}
	args := make([]any, len(raw))
	for i, v := range raw {
		if v == argfile.Null {
			continue
		}
		args[i] = v
	}
	return args
}
