package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgdbml/pgdbml/internal/pipeline"
	"github.com/pgdbml/pgdbml/internal/report"
	"github.com/pgdbml/pgdbml/internal/review"
	"github.com/pgdbml/pgdbml/internal/typemap"
)

var (
	convertOutput    string
	convertReport    string
	convertModel     string
	convertTypes     string
	convertReview    bool
	convertStrict    bool
	convertBackslash bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [dump file]",
	Short: "Convert a PostgreSQL DDL dump to DBML",
	Long: `Convert reads a PostgreSQL schema dump (pg_dump --schema-only or
hand-written DDL) and writes the equivalent DBML. Without a file argument
the dump is read from stdin.

The conversion never fails on malformed SQL: unrecognized statements become
report entries. Use --report to persist the full accounting and --strict to
exit non-zero when anything was dropped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		sourcePath := ""
		var input []byte
		if len(args) == 1 {
			sourcePath = args[0]
			input, err = os.ReadFile(sourcePath)
			if err != nil {
				return fmt.Errorf("reading dump: %w", err)
			}
		} else {
			input, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
		}

		types, err := buildTypeMap(cfg.Convert.TypeOverrides)
		if err != nil {
			return err
		}

		opts := pipeline.Options{
			SourcePath:       sourcePath,
			BackslashEscapes: convertBackslash || cfg.Convert.BackslashEscapes,
			Types:            types,
		}
		result := pipeline.Convert(string(input), opts)

		if convertReview {
			apply, err := review.Run(result.Types)
			if err != nil {
				return err
			}
			if apply {
				// re-run with the edited mappings so overrides take effect
				result = pipeline.Convert(string(input), opts)
			}
		}

		dbml := result.DBML
		if convertOutput == "" || convertOutput == "-" {
			if _, err := os.Stdout.Write(dbml); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		} else {
			if err := os.WriteFile(convertOutput, dbml, 0o644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}

		if convertReport != "" {
			if strings.HasSuffix(convertReport, ".json") {
				err = report.WriteJSON(result.Report, convertReport)
			} else {
				err = report.WriteText(result.Report, convertReport)
			}
			if err != nil {
				return err
			}
		}

		if convertModel != "" {
			if err := result.Model.WriteYAML(convertModel); err != nil {
				return fmt.Errorf("writing model: %w", err)
			}
		}

		q := result.Quality
		fmt.Fprintf(os.Stderr, "%s from %d statements (%.1f%% preserved, sigma %.2f)\n",
			result.Model.Summary(), result.Statements, q.Compatibility, q.Sigma.SigmaLevel)
		if n := len(result.Report.Validation); n > 0 {
			fmt.Fprintf(os.Stderr, "warning: output failed validation with %d issues, see --report\n", n)
		}

		strict := convertStrict || cfg.Convert.Strict
		if strict && (q.Dropped > 0 || q.Unsupported > 0 || q.SilentFailure || len(result.Report.Validation) > 0) {
			return fmt.Errorf("strict mode: %d dropped, %d unsupported constructs, %d validation issues",
				q.Dropped, q.Unsupported, len(result.Report.Validation))
		}
		return nil
	},
}

// buildTypeMap loads the override file when given and layers config
// overrides on top.
func buildTypeMap(configOverrides map[string]string) (*typemap.TypeMap, error) {
	var types *typemap.TypeMap
	if convertTypes != "" {
		loaded, err := typemap.LoadYAML(convertTypes)
		if err != nil {
			return nil, fmt.Errorf("loading type overrides: %w", err)
		}
		types = loaded
	} else {
		types = typemap.New()
	}
	for source, token := range configOverrides {
		if !types.IsOverridden(source) {
			types.Override(source, token)
		}
	}
	return types, nil
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "out", "o", "", "output DBML path (default stdout)")
	convertCmd.Flags().StringVar(&convertReport, "report", "", "write the conversion report (.json for JSON, anything else for text)")
	convertCmd.Flags().StringVar(&convertModel, "model", "", "write the intermediate schema model as YAML")
	convertCmd.Flags().StringVar(&convertTypes, "types", "", "YAML file with type mapping overrides")
	convertCmd.Flags().BoolVar(&convertReview, "review", false, "review type mappings interactively before writing output")
	convertCmd.Flags().BoolVar(&convertStrict, "strict", false, "exit non-zero when any construct was dropped or unsupported")
	convertCmd.Flags().BoolVar(&convertBackslash, "backslash-escapes", false, "treat backslashes in string literals as escapes")
	rootCmd.AddCommand(convertCmd)
}
