package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// options are shared by every subcommand
type options struct {
	driver string
	dsn    string
}

// NewRootCommand creates the spkrepo-admin command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "spkrepo-admin",
		Short: "spkrepo - Synology package repository administration",
		Long: `spkrepo-admin prepares the repository database and manages users and
roles directly, without going through the HTTP API.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.driver, "driver", envOr("SPKREPO_DB_DRIVER", "postgres"), "Database driver (postgres or sqlite3)")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", os.Getenv("SPKREPO_DB_DSN"), "Database connection string")

	root.AddCommand(
		newSchemaCommand(opts),
		newRoleCommand(opts),
		newUserCommand(opts),
	)
	return root
}

// open connects to the database named by the global flags
func (o *options) open() (*storage.Store, error) {
	if o.dsn == "" {
		return nil, fmt.Errorf("--dsn is required")
	}
	cfg := storage.DefaultConfig()
	cfg.Driver = o.driver
	cfg.DSN = o.dsn
	cfg.MaxOpenConns = 2
	cfg.MaxIdleConns = 1
	return storage.Open(cfg)
}

// commandLogger sends service logs to the command's stderr
func commandLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	return logger
}

// readPassword returns the first line of stdin
func readPassword(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return "", fmt.Errorf("no password on stdin")
	}
	return strings.TrimRight(scanner.Text(), "\r"), nil
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
