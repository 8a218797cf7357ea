// Status command lists applied migrations from the ledger.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablodb/tablo/migrate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied migrations and verify the ledger",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	drv, err := openStore(v)
	if err != nil {
		return err
	}
	defer drv.Close()

	m := migrate.NewMigrator(drv)
	if err := m.Verify(cmd.Context()); err != nil {
		return err
	}
	recs, err := m.Status(cmd.Context())
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no migrations applied")
		return nil
	}
	for _, rec := range recs {
		fmt.Printf("%s  %s  %s  (%d entities)\n",
			rec.AppliedAt.Format("2006-01-02 15:04:05"), rec.Name, rec.Checksum, len(rec.Snapshot.Entities))
	}
	return nil
}
