package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/hierarchy"
	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/params"
)

var (
	entitiesLevel   string
	entitiesFile    string
	entitiesReplace bool
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Manage the entity catalog",
	Long:  "The catalog mirrors the platform's suppliers, model types, capabilities, models, and agents so the resolver can walk parent chains.",
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var filter params.EntityFilter
		if entitiesLevel != "" {
			level, err := model.ParseLevel(entitiesLevel)
			if err != nil {
				return err
			}
			filter.Level = &level
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		entities, err := env.Catalog.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list entities")
		}
		if len(entities) == 0 {
			zap.L().Info("entity catalog is empty, run 'entities import' to load one")
			return nil
		}

		formatEntities(os.Stdout, entities)
		return nil
	},
}

var entitiesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the entity catalog from a YAML file",
	Long:  "Upserts catalog entries from the file. With --replace the existing catalog is dropped first; on Postgres the replace runs as one COPY transaction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		entities, err := hierarchy.LoadEntitiesFromFile(entitiesFile)
		if err != nil {
			return err
		}

		// Postgres can take the fast bulk path; sqlite upserts row by row.
		if ps, ok := env.Store.(*params.PostgresStore); ok {
			n, err := hierarchy.BulkLoad(ctx, ps.Pool(), entities, entitiesReplace)
			if err != nil {
				return eris.Wrap(err, "bulk load entities")
			}
			zap.L().Info("entity catalog imported",
				zap.Int64("entities", n),
				zap.Bool("replace", entitiesReplace),
			)
			return nil
		}

		if entitiesReplace {
			if err := env.Store.DeleteAllEntities(ctx); err != nil {
				return eris.Wrap(err, "clear entity catalog")
			}
		}
		n, err := env.Catalog.Sync(ctx, entities)
		if err != nil {
			return eris.Wrap(err, "sync entities")
		}
		zap.L().Info("entity catalog imported",
			zap.Int("entities", n),
			zap.Bool("replace", entitiesReplace),
		)
		return nil
	},
}

// formatEntities writes a tabular view of catalog entries to w.
func formatEntities(out io.Writer, entities []model.Entity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LEVEL\tID\tNAME\tPARENT")
	_, _ = fmt.Fprintln(w, "-----\t--\t----\t------")

	for _, e := range entities {
		parent := "-"
		if e.ParentLevel != nil {
			parent = fmt.Sprintf("%s/%s", *e.ParentLevel, e.ParentID)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Level,
			e.ID,
			e.Name,
			parent,
		)
	}
	_ = w.Flush()
}

func init() {
	entitiesListCmd.Flags().StringVar(&entitiesLevel, "level", "", "filter by hierarchy level")

	entitiesImportCmd.Flags().StringVar(&entitiesFile, "file", "", "entity catalog YAML file (required)")
	entitiesImportCmd.Flags().BoolVar(&entitiesReplace, "replace", false, "drop the existing catalog before importing")
	_ = entitiesImportCmd.MarkFlagRequired("file")

	entitiesCmd.AddCommand(entitiesListCmd, entitiesImportCmd)
	rootCmd.AddCommand(entitiesCmd)
}
