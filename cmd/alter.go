package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ddl-alterator/internal/engine"
	"ddl-alterator/internal/storage"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/afs/url"
	"go.uber.org/zap"
)

var (
	paths    []string
	tables   []string
	validate bool
	force    bool
)

var alterCmd = &cobra.Command{
	Use:   "alter",
	Short: "Apply DDL schema changes to the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		alt, store, closer, err := newAlterator(ctx, validate, force)
		if err != nil {
			return err
		}
		defer closer()

		// Path/table strategy: flag first, then config.
		targetPaths := paths
		if len(targetPaths) == 0 {
			targetPaths = viper.GetStringSlice("ddl.paths")
		}
		if len(targetPaths) == 0 {
			return fmt.Errorf("no DDL path given (use --path or ddl.paths)")
		}
		targetTables := tables
		if len(targetTables) == 0 {
			targetTables = viper.GetStringSlice("ddl.tables")
		}

		files, err := store.ListDDL(ctx, targetPaths, storage.Filter{
			Prefix: viper.GetString("ddl.prefix"),
			Suffix: viper.GetString("ddl.suffix"),
			Tables: targetTables,
		})
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no matching DDL files found in %v", targetPaths)
		}

		if validate {
			Logger.Info("[VALIDATION] dry run, the catalog will not be written")
		}
		Logger.Info("processing DDL files", zap.Int("count", len(files)))
		start := time.Now()

		uiprogress.Start()
		bar := uiprogress.AddBar(len(files)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Processing: "
		})

		summary, runErr := alt.Run(ctx, files, func() {
			bar.Incr()
		})

		uiprogress.Stop()

		if summary != nil {
			printSummary(summary)
			if err := publish(cmd, store, summary); err != nil {
				return err
			}
		}
		Logger.Info("alter done", zap.Duration("elapsed", time.Since(start)))
		return runErr
	},
}

func init() {
	RootCmd.AddCommand(alterCmd)

	// CLI Flags
	alterCmd.Flags().StringSliceVarP(&paths, "path", "p", []string{}, "DDL files or directories (local or s3://)")
	alterCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific tables to process (comma-separated)")
	alterCmd.Flags().BoolVar(&validate, "validate", false, "Compare only, do not update the catalog")
	alterCmd.Flags().BoolVar(&force, "force", false, "Apply incompatible type changes without backfill")
	alterCmd.Flags().String("prefix", "", "DDL file name prefix")
	alterCmd.Flags().String("suffix", "", "DDL file name suffix")
	alterCmd.Flags().String("output", "", "URL of the directory receiving the JSON result")

	viper.BindPFlag("ddl.prefix", alterCmd.Flags().Lookup("prefix"))
	viper.BindPFlag("ddl.suffix", alterCmd.Flags().Lookup("suffix"))
	viper.BindPFlag("settings.output_url", alterCmd.Flags().Lookup("output"))
}

func printSummary(s *engine.Summary) {
	fmt.Println("\n📊 Summary Report:")
	buckets := []struct {
		icon     string
		outcomes []engine.Outcome
	}{
		{"✓", s.Success}, {"=", s.Identical}, {"+", s.New}, {"-", s.Skipped}, {"!", s.Errored},
	}
	i := 0
	for _, b := range buckets {
		for _, o := range b.outcomes {
			i++
			fmt.Printf("[%s] [%02d/%02d] %-40s : %s%s\n", b.icon, i, s.Stats.Analyzed, displayName(o), o.Status, statusDetail(o))
			if o.Message != "" {
				fmt.Printf("    └ %s\n", o.Message)
			}
		}
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Analyzed: %d  Updated: %d  Identical: %d  New: %d  Skipped: %d  Errored: %d\n",
		s.Stats.Analyzed, s.Stats.Updates, s.Stats.Identical, s.Stats.New, s.Stats.Skipped, s.Stats.Errored)
}

func displayName(o engine.Outcome) string {
	if o.Table != "" {
		return o.Table
	}
	return storage.BaseName(o.File)
}

func statusDetail(o engine.Outcome) string {
	switch o.Status {
	case engine.StatusSkipped:
		parts := []string{string(o.Reason)}
		if o.RuleType != "" {
			parts = append(parts, o.RuleType, o.From)
		}
		return " (" + strings.Join(parts, " ") + ")"
	case engine.StatusSuccess:
		return fmt.Sprintf(" (version %s -> %s)", o.PreviousVersion, o.CurrentVersion)
	case engine.StatusError:
		return " (" + o.Code + ")"
	}
	return ""
}

// publish writes the JSON result to settings.output_url when configured.
func publish(cmd *cobra.Command, store *storage.Service, s *engine.Summary) error {
	data, err := json.MarshalIndent(engine.Report{ResponseMetadata: s}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	outputURL := viper.GetString("settings.output_url")
	if outputURL == "" {
		Logger.Debug("result", zap.ByteString("json", data))
		return nil
	}
	target := url.Join(outputURL, fmt.Sprintf("alterator-result-%s.json", time.Now().UTC().Format("20060102T150405Z")))
	if err := store.Upload(cmd.Context(), target, data); err != nil {
		return err
	}
	Logger.Info("result uploaded", zap.String("url", target))
	return nil
}
