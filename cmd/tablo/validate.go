// Validate command checks a schema file without touching the store.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate the schema file",
	Long: `Validate parses the configured schema file, checks its entities,
fields, and relations, and reports the first problem found. The store
is not contacted.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	v, err := loadConfig()
	if err != nil {
		return err
	}
	snap, path, err := loadSchema(v)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	sum, err := snap.Checksum()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d entities, checksum %s\n", path, len(snap.Entities), sum)
	return nil
}
