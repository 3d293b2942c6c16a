package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/cmscore/adapters/clock"
	"github.com/artpar/cmscore/adapters/idgen"
	"github.com/artpar/cmscore/adapters/memory"
	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/bootstrap"
	"github.com/artpar/cmscore/config"
	"github.com/artpar/cmscore/ports"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with schema files",
	Long: `Check and apply YAML schema files.

A schema file declares groups and models with their fields. Reference
and group fields name their target by key:

  models:
    - key: post
      name: Post
      fields:
        - {key: title, title: Title, type: text, isTitle: true}
        - {key: author, title: Author, type: reference, model: author}`,
}

var schemaLintCmd = &cobra.Command{
	Use:   "lint <file.yaml>",
	Short: "Check a schema file without touching any store",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaLint,
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply <file.yaml>",
	Short: "Create the groups, models and fields of a schema file",
	Long: `Apply a schema file to the configured store.

Entries that already exist by key are left as they are, so a file can be
applied again after new fields are added to it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchemaApply,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaLintCmd)
	schemaCmd.AddCommand(schemaApplyCmd)
}

func readSchemaFile(path string) (app.SchemaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.SchemaFile{}, fmt.Errorf("read schema file: %w", err)
	}
	return app.ParseSchemaFile(data)
}

func runSchemaLint(cmd *cobra.Command, args []string) error {
	sf, err := readSchemaFile(args[0])
	if err != nil {
		return err
	}

	stores := ports.Stores{
		Models:  memory.NewModelStore(),
		Groups:  memory.NewGroupStore(),
		Schemas: memory.NewSchemaStore(),
		Items:   memory.NewItemStore(memory.ItemStoreConfig{}),
		Views:   memory.NewViewStore(),
	}
	svc := app.NewSchemaService(stores, idgen.NewSequential("lint-"), clock.Real{}, nil, zerolog.Nop())

	r, err := svc.ApplyFile(context.Background(), sf)
	if err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), args[0], r)
}

func runSchemaApply(cmd *cobra.Command, args []string) error {
	sf, err := readSchemaFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	cfg.Metrics.Enabled = false

	a, err := bootstrap.New(cfg)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer a.Shutdown()

	r, err := a.Schemas.ApplyFile(cmd.Context(), sf)
	if err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), args[0], r)
}

func report(out io.Writer, path string, r app.ApplyReport) error {
	fmt.Fprintf(out, "%s\n", path)
	fmt.Fprintf(out, "  groups created: %d\n", r.GroupsCreated)
	fmt.Fprintf(out, "  models created: %d\n", r.ModelsCreated)
	fmt.Fprintf(out, "  fields added:   %d\n", r.FieldsAdded)
	if r.Skipped > 0 {
		fmt.Fprintf(out, "  already present: %d\n", r.Skipped)
	}
	if r.OK() {
		fmt.Fprintf(out, "  %s no problems\n", checkMark)
		return nil
	}
	for _, p := range r.Problems {
		fmt.Fprintf(out, "  %s %s\n", crossMark, p.Error())
	}
	return fmt.Errorf("%d problem(s) in %s", len(r.Problems), path)
}
