package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Drivers understood by pkg/runtime.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

const (
	DefaultCommitInterval = 1000
	DefaultMaxRows        = 100
)

var (
	ErrNoDSN         = errors.New("no DSN configured")
	ErrUnknownDriver = errors.New("unknown driver")
	ErrInvalidValue  = errors.New("invalid configuration value")

	datasourceRe = regexp.MustCompile(`url\s*=\s*(?:env\("([^"]+)"\)|"([^"]+)")`)
)

// Config holds everything needed to open a session and run the CLI.
type Config struct {
	DSN            string
	Driver         string
	CommitInterval int
	MaxRows        int
	LogVerbosity   int
	LogConsole     bool
}

// Options are the explicit inputs, usually command line flags. They win over
// the environment.
type Options struct {
	DSN        string
	Driver     string
	SchemaFile string
	// EnvFiles are loaded with godotenv before reading the environment.
	// Missing files are ignored.
	EnvFiles []string
}

// Load resolves the configuration. The DSN comes from Options.DSN, then
// DATABASE_URL, then the datasource url of a Prisma schema.
func Load(opts Options) (*Config, error) {
	loadEnvFiles(opts.EnvFiles)

	cfg := &Config{
		DSN:            opts.DSN,
		Driver:         firstNonEmpty(opts.Driver, os.Getenv("DBSESSION_DRIVER"), DriverPostgres),
		CommitInterval: DefaultCommitInterval,
		MaxRows:        DefaultMaxRows,
	}

	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	if cfg.DSN == "" && opts.SchemaFile != "" {
		dsn, err := DSNFromSchema(opts.SchemaFile)
		if err != nil {
			return nil, err
		}
		cfg.DSN = dsn
	}
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}

	switch cfg.Driver {
	case DriverPostgres, DriverPGX:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	var err error
	if cfg.CommitInterval, err = envInt("DBSESSION_COMMIT_INTERVAL", cfg.CommitInterval, 1); err != nil {
		return nil, err
	}
	if cfg.MaxRows, err = envInt("DBSESSION_MAX_ROWS", cfg.MaxRows, 0); err != nil {
		return nil, err
	}
	if cfg.LogVerbosity, err = envInt("DBSESSION_LOG_VERBOSITY", 0, 0); err != nil {
		return nil, err
	}
	if v := os.Getenv("DBSESSION_LOG_CONSOLE"); v != "" {
		if cfg.LogConsole, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%w: DBSESSION_LOG_CONSOLE=%q", ErrInvalidValue, v)
		}
	}

	return cfg, nil
}

// DSNFromSchema reads the datasource url from a Prisma schema, resolving
// env("NAME") references.
func DSNFromSchema(schemaFile string) (string, error) {
	data, err := os.ReadFile(schemaFile)
	if err != nil {
		return "", err
	}
	m := datasourceRe.FindStringSubmatch(string(data))
	if len(m) != 3 {
		return "", fmt.Errorf("could not parse datasource url from schema: %s", schemaFile)
	}
	if m[1] != "" {
		dsn := os.Getenv(m[1])
		if dsn == "" {
			return "", fmt.Errorf("%w: schema %s references unset env %s", ErrNoDSN, schemaFile, m[1])
		}
		return dsn, nil
	}
	return m[2], nil
}

func loadEnvFiles(files []string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// godotenv never overrides variables that are already set.
		_ = godotenv.Load(f)
	}
}

func envInt(name string, def, lowerBound int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lowerBound {
		return 0, fmt.Errorf("%w: %s=%q must be an integer >= %d", ErrInvalidValue, name, raw, lowerBound)
	}
	return v, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
