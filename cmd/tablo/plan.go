// Plan command prints the DDL a migration would execute, without
// executing it.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablodb/tablo/migrate"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the DDL statements a migration would run",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	stmts, warns, err := migrate.NewMigrator(drv).Plan(cmd.Context(), snap)
	if err != nil {
		return err
	}
	if len(stmts) == 0 {
		fmt.Println("store is up to date")
		return nil
	}
	for _, stmt := range stmts {
		fmt.Printf("%s;\n", stmt)
	}
	for _, w := range warns {
		fmt.Printf("-- warning: %s\n", w)
	}
	return nil
}
