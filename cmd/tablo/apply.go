// Apply command runs one named migration against the store.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablodb/tablo/migrate"
)

var (
	applyName        string
	allowDestructive bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the schema to the store as one migration",
	Long: `Apply diffs the schema file against the store's latest recorded
snapshot and applies the result under the given migration name. The
statements and the ledger record commit in one transaction; re-running
an applied name is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyName, "name", "", "migration name (default: generated from the current time)")
	applyCmd.Flags().BoolVar(&allowDestructive, "allow-destructive", false, "permit operations that discard data")
}

func runApply(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	snap, path, err := loadSchema(v)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	drv, err := openStore(v)
	if err != nil {
		return err
	}
	defer drv.Close()

	var opts []migrate.Option
	if allowDestructive {
		opts = append(opts, migrate.WithAllowDestructive())
	}
	if verbose {
		opts = append(opts, migrate.WithLogger(func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		}))
	}
	m := migrate.NewMigrator(drv, opts...)

	if err := m.Verify(cmd.Context()); err != nil {
		return err
	}

	name := applyName
	if name == "" {
		name = migrate.NewMigrationName("apply")
	}
	rec, err := m.Apply(cmd.Context(), name, snap)
	if err != nil {
		return err
	}
	fmt.Printf("migration %s applied at %s (checksum %s)\n",
		rec.Name, rec.AppliedAt.Format("2006-01-02 15:04:05"), rec.Checksum)
	return nil
}
