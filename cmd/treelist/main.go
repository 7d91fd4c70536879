package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baiirun/treelist/internal/app"
	"github.com/baiirun/treelist/internal/config"
	"github.com/baiirun/treelist/internal/lists"
	"github.com/baiirun/treelist/internal/logging"
)

var (
	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "treelist",
	Short: "Hierarchical lists stored as flat records",
	Long: `A CLI and HTTP server for ordered, nested lists attached to owner records.
Each list lives in one scope (owner type, owner id, field) and is limited to the
field's configured depth.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ReadFile(v); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(v)
		return err
	},
}

// openApp wires the configured backend. Commands that touch lists call it
// from RunE and close the app when done.
func openApp(cmd *cobra.Command) (*app.App, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}
	return app.Open(cmd.Context(), cfg, logger)
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("backend", config.BackendSQLite, "record store: sqlite or dynamodb")
	f.String("db", "", "SQLite database path (default ~/.treelist/treelist.db)")
	f.String("fields", "", "field registry file (.yaml or .json)")
	f.String("lock-dir", "", "directory for cross-process scope locks")
	f.Duration("lock-timeout", lists.DefaultLockTimeout, "how long a mutation waits for its scope")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "text", "text or json")

	for key, flag := range map[string]string{
		"backend":      "backend",
		"db":           "db",
		"fields":       "fields",
		"lock_dir":     "lock-dir",
		"lock_timeout": "lock-timeout",
		"log_level":    "log-level",
		"log_format":   "log-format",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
}

func init() {
	bindFlags(v, rootCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(ownerCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
