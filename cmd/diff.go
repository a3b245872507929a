package cmd

import (
	"encoding/json"
	"fmt"

	"ddl-alterator/internal/engine"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <ddl-file>",
	Short: "Show how a DDL file differs from the catalog without changing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		alt, store, closer, err := newAlterator(ctx, true, false)
		if err != nil {
			return err
		}
		defer closer()

		data, err := store.Download(ctx, args[0])
		if err != nil {
			return err
		}
		outcome, err := alt.Process(ctx, engine.File{Name: args[0], DDL: string(data)})
		out, encErr := json.MarshalIndent(outcome, "", "  ")
		if encErr != nil {
			return fmt.Errorf("failed to encode result: %w", encErr)
		}
		fmt.Println(string(out))
		return err
	},
}

func init() {
	RootCmd.AddCommand(diffCmd)
}
