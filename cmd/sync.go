package cmd

import (
	"encoding/json"
	"fmt"

	"ddl-alterator/internal/engine"

	"github.com/spf13/cobra"
)

var (
	syncSource     string
	syncTarget     string
	partitionCheck bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Align a target catalog table's columns with a source table",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := engine.ParseTableRef(syncSource)
		if err != nil {
			return err
		}
		tgt, err := engine.ParseTableRef(syncTarget)
		if err != nil {
			return err
		}

		alt, _, closer, err := newAlterator(cmd.Context(), validate, force)
		if err != nil {
			return err
		}
		defer closer()

		outcome, err := alt.Sync(cmd.Context(), src, tgt, partitionCheck)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(data))
		if outcome.Status == engine.StatusError {
			return fmt.Errorf("sync of %s failed: %s", tgt, outcome.Message)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncSource, "source", "", "Source table (db.table)")
	syncCmd.Flags().StringVar(&syncTarget, "target", "", "Target table (db.table)")
	syncCmd.Flags().BoolVar(&partitionCheck, "partition-check", true, "Require matching partition keys")
	syncCmd.Flags().BoolVar(&validate, "validate", false, "Compare only, do not update the catalog")
	syncCmd.Flags().BoolVar(&force, "force", false, "Apply incompatible type changes")
	syncCmd.MarkFlagRequired("source")
	syncCmd.MarkFlagRequired("target")
}
