// Diff command shows the structural operations pending against the store.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablodb/tablo/migrate"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show pending structural changes",
	Long: `Diff compares the schema file against the store's latest recorded
snapshot and lists the operations a migration would perform, flagging
the destructive ones.`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
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

	m := migrate.NewMigrator(drv)
	prev, err := m.Current(cmd.Context())
	if err != nil {
		return err
	}

	ops, warns := migrate.Diff(prev, snap)
	if len(ops) == 0 {
		fmt.Println("store is up to date")
		return nil
	}
	for _, op := range ops {
		marker := " "
		if op.Destructive() {
			marker = "!"
		}
		fmt.Printf("%s %s\n", marker, op.Describe())
	}
	for _, w := range warns {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
