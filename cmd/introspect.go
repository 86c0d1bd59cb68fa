package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgdbml/pgdbml/internal/discovery"
	"github.com/pgdbml/pgdbml/internal/generator"
	"github.com/pgdbml/pgdbml/internal/ledger"
	"github.com/pgdbml/pgdbml/internal/quality"
	"github.com/pgdbml/pgdbml/internal/report"
	"github.com/pgdbml/pgdbml/internal/review"
)

var (
	introspectHost     string
	introspectPort     int
	introspectDatabase string
	introspectSchema   string
	introspectUser     string
	introspectPassword string
	introspectSSL      bool
	introspectOutput   string
	introspectReport   string
	introspectModel    string
	introspectReview   bool
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Generate DBML from a live PostgreSQL database",
	Long: `Introspect connects to a running PostgreSQL instance, reads the
catalog for one schema, and produces the same DBML and conversion report the
dump converter does. Connection settings come from the config file; flags
override individual fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		src := cfg.Source
		if introspectHost != "" {
			src.Host = introspectHost
		}
		if introspectPort != 0 {
			src.Port = introspectPort
		}
		if introspectDatabase != "" {
			src.Database = introspectDatabase
		}
		if introspectSchema != "" {
			src.Schema = introspectSchema
		}
		if introspectUser != "" {
			src.Username = introspectUser
		}
		if introspectPassword != "" {
			src.Password = introspectPassword
		}
		if introspectSSL {
			src.SSL = true
		}
		if src.Host == "" || src.Database == "" {
			return fmt.Errorf("source host and database are required; set them in %s or via flags", cfgFile)
		}

		types, err := buildTypeMap(cfg.Convert.TypeOverrides)
		if err != nil {
			return err
		}

		pg := discovery.NewPostgres(&src)
		ctx := cmd.Context()
		if err := pg.Connect(ctx); err != nil {
			return err
		}
		defer pg.Close()

		led := ledger.New()
		model, err := pg.Introspect(ctx, types, led)
		if err != nil {
			return err
		}

		if introspectReview {
			apply, err := review.Run(types)
			if err != nil {
				return err
			}
			if apply {
				led = ledger.New()
				model, err = pg.Introspect(ctx, types, led)
				if err != nil {
					return err
				}
			}
		}

		score := quality.Score(led, model, quality.Stats{TableStatements: len(model.Tables)})

		dbml := generator.Generate(model)
		issues := generator.Validate(dbml)
		if len(issues) > 0 {
			fmt.Fprintf(os.Stderr, "warning: output failed validation with %d issues, see --report\n", len(issues))
		}
		if introspectOutput == "" || introspectOutput == "-" {
			if _, err := os.Stdout.Write(dbml); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		} else {
			if err := os.WriteFile(introspectOutput, dbml, 0o644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}

		if introspectReport != "" {
			rep := report.New(src.Host+"/"+src.Database, len(model.Tables), model, led, score)
			rep.Validation = issues
			if strings.HasSuffix(introspectReport, ".json") {
				err = report.WriteJSON(rep, introspectReport)
			} else {
				err = report.WriteText(rep, introspectReport)
			}
			if err != nil {
				return err
			}
		}

		if introspectModel != "" {
			if err := model.WriteYAML(introspectModel); err != nil {
				return fmt.Errorf("writing model: %w", err)
			}
		}

		fmt.Fprintf(os.Stderr, "%s (%.1f%% preserved)\n", model.Summary(), score.Compatibility)
		return nil
	},
}

func init() {
	introspectCmd.Flags().StringVar(&introspectHost, "host", "", "database host")
	introspectCmd.Flags().IntVar(&introspectPort, "port", 0, "database port (default 5432)")
	introspectCmd.Flags().StringVar(&introspectDatabase, "database", "", "database name")
	introspectCmd.Flags().StringVar(&introspectSchema, "schema", "", "schema to introspect (default public)")
	introspectCmd.Flags().StringVar(&introspectUser, "username", "", "database user")
	introspectCmd.Flags().StringVar(&introspectPassword, "password", "", "database password")
	introspectCmd.Flags().BoolVar(&introspectSSL, "ssl", false, "require SSL")
	introspectCmd.Flags().StringVarP(&introspectOutput, "out", "o", "", "output DBML path (default stdout)")
	introspectCmd.Flags().StringVar(&introspectReport, "report", "", "write the conversion report (.json for JSON, anything else for text)")
	introspectCmd.Flags().StringVar(&introspectModel, "model", "", "write the intermediate schema model as YAML")
	introspectCmd.Flags().BoolVar(&introspectReview, "review", false, "review type mappings interactively before writing output")
	rootCmd.AddCommand(introspectCmd)
}
