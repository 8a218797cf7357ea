// Package main provides the tablo CLI: schema validation, migration
// planning and application, and ledger inspection over a configured
// store. All logic lives in the library packages; the CLI only wires
// config, files, and output together.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Backends selectable via the dialect config key.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// configFile is set by the --config flag.
	configFile string
	// schemaFile is set by the --schema flag, overriding config.
	schemaFile string
	// verbose turns on statement-level logging during apply.
	verbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tablo",
	Short: "Tablo is a schema-driven relational data layer",
	Long: `Tablo manages a relational store from a declarative entity schema:
it validates schema files, diffs them against the store's recorded
state, generates dialect DDL, and applies migrations transactionally
with an append-only ledger.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: tablo.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "schema definition file (overrides the config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log each statement during apply")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tablo v0.1.0")
	},
}
