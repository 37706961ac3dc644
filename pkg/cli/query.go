package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TechXTT/dbsession"
)

func newQueryCmd(a *app) *cobra.Command {
	var maxRows int

	cmd := &cobra.Command{
		Use:   `query SQL [ARG...]`,
		Short: "Run a query and print at most --max-rows rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := maxRows
			if !cmd.Flags().Changed("max-rows") {
				limit = a.cfg.MaxRows
			}
			return a.withSession(cmd, func(ctx context.Context, s *dbsession.Session, out io.Writer) error {
				rows, err := s.ExecuteQuery(ctx, args[0], limit, bindArgs(args[1:])...)
				if err != nil {
					return err
				}
				return printRows(out, rows)
			})
		},
	}

	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "Maximum rows to fetch (default $DBSESSION_MAX_ROWS or 100)")
	return cmd
}

func printRows(out io.Writer, rows []dbsession.ResultRow) error {
	if rows == nil {
		_, err := fmt.Fprintln(out, "no results")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v.Valid {
				cells[i] = v.String
			} else {
				cells[i] = "NULL"
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
