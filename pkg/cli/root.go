package cli

import (
	"context"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/trebent/zerologr"

	"github.com/TechXTT/dbsession"
	"github.com/TechXTT/dbsession/pkg/config"
	"github.com/TechXTT/dbsession/pkg/runtime"
)

func version() string {
	return "v0.1.0"
}

// Opener opens a session for a resolved configuration.
type Opener func(ctx context.Context, cfg *config.Config, opts ...dbsession.Option) (*runtime.Handle, error)

type app struct {
	opts config.Options
	cfg  *config.Config
	open Opener
	log  *logr.Logger
}

// NewRootCmd builds the top-level `dbsession` command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(runtime.Open, nil)
}

// newRootCmd lets tests swap the opener and the logger. A nil logger means
// one is built from the configuration with zerologr.
func newRootCmd(open Opener, log *logr.Logger) *cobra.Command {
	a := &app{open: open, log: log}

	root := &cobra.Command{
		Use:           "dbsession",
		Short:         "Run statements, capped queries and checkpointed batches in one transaction",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.opts)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if a.log == nil {
				l := zerologr.New(&zerologr.Opts{
					Console: cfg.LogConsole,
					Caller:  true,
					V:       cfg.LogVerbosity,
				}).WithName("dbsession")
				a.log = &l
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.DSN, "dsn", "", "Database connection string (default $DATABASE_URL)")
	pf.StringVar(&a.opts.Driver, "driver", "", "Driver: postgres (lib/pq) or pgx (default $DBSESSION_DRIVER or postgres)")
	pf.StringVar(&a.opts.SchemaFile, "schema", "", "Prisma schema to read the datasource url from")
	pf.StringSliceVar(&a.opts.EnvFiles, "env-file", []string{".env"}, "Env files to load before reading the environment")

	root.AddCommand(newExecCmd(a))
	root.AddCommand(newQueryCmd(a))
	root.AddCommand(newBatchCmd(a))
	root.AddCommand(NewVersionCmd())
	return root
}

// NewVersionCmd builds the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version())
		},
	}
}

// withSession opens a session, runs fn and closes the session. Pending work is
// committed on success and rolled back when fn fails.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *dbsession.Session, out io.Writer) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logr.NewContext(ctx, *a.log)

	h, err := a.open(ctx, a.cfg, dbsession.WithLogger(dbsession.NewLogrLogger(*a.log)))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := h.Rollback(ctx); rbErr != nil {
				a.log.Error(rbErr, "Rollback after failure")
			}
		}
		if cerr := h.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, h.Session, cmd.OutOrStdout())
}
