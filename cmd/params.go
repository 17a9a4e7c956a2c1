package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/params"
)

var (
	paramsLevel     string
	paramsEntity    string
	paramsName      string
	paramsValue     string
	paramsType      string
	paramsDesc      string
	paramsUpdatedBy string
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Inspect and edit stored parameters",
	Long:  "Lists, reads, writes, and deletes the raw parameter rows at one hierarchy position. Use 'resolve' to see what an entity actually inherits.",
}

// flagPosition turns the --level/--entity flags into a position. The
// system level needs no entity.
func flagPosition(level, entity string) (model.Level, string, error) {
	l, err := model.ParseLevel(level)
	if err != nil {
		return "", "", err
	}
	if l == model.LevelSystem && entity == "" {
		entity = model.SystemEntityID
	}
	if entity == "" {
		return "", "", eris.New("--entity is required below the system level")
	}
	return l, entity, nil
}

var paramsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List parameter rows at a position",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, entity, err := flagPosition(paramsLevel, paramsEntity)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		defs, err := env.Store.ListForEntity(ctx, level, entity)
		if err != nil {
			return eris.Wrap(err, "list parameters")
		}
		if len(defs) == 0 {
			zap.L().Info("no parameters at this position",
				zap.String("level", string(level)),
				zap.String("entity_id", entity),
			)
			return nil
		}

		formatParameterRows(os.Stdout, defs)
		return nil
	},
}

var paramsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show one parameter row",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, entity, err := flagPosition(paramsLevel, paramsEntity)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		def, err := env.Store.Get(ctx, level, entity, paramsName)
		if err != nil {
			return eris.Wrap(err, "get parameter")
		}

		formatParameterRows(os.Stdout, []model.ParameterDefinition{*def})
		return nil
	},
}

var paramsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a parameter",
	Long:  "Creates the parameter if the position has no row of that name, otherwise updates the existing row in place. Validation rules on the row are kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, entity, err := flagPosition(paramsLevel, paramsEntity)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		existing, err := env.Store.Get(ctx, level, entity, paramsName)
		switch {
		case params.IsNotFound(err):
			valueType := paramsType
			if valueType == "" {
				valueType = string(model.TypeString)
			}
			created, err := env.Service.Create(ctx, model.ParameterDefinition{
				Level:       level,
				EntityID:    entity,
				Name:        paramsName,
				Value:       paramsValue,
				Type:        model.ValueType(valueType),
				Description: paramsDesc,
			}, paramsUpdatedBy)
			if err != nil {
				return eris.Wrap(err, "create parameter")
			}
			zap.L().Info("parameter created",
				zap.String("id", created.ID),
				zap.String("name", created.Name),
				zap.Bool("is_override", created.IsOverride),
			)
			return nil
		case err != nil:
			return eris.Wrap(err, "get parameter")
		}

		def := *existing
		def.Value = paramsValue
		if paramsType != "" {
			def.Type = model.ValueType(paramsType)
		}
		if paramsDesc != "" {
			def.Description = paramsDesc
		}
		updated, err := env.Service.Update(ctx, def, paramsUpdatedBy)
		if err != nil {
			return eris.Wrap(err, "update parameter")
		}
		zap.L().Info("parameter updated",
			zap.String("id", updated.ID),
			zap.String("name", updated.Name),
			zap.Int64("row_version", updated.RowVersion),
		)
		return nil
	},
}

var paramsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a parameter row",
	Long:  "Deletes the row at the given position. Names that are only inherited have no row here and are refused; delete them at their defining level.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, entity, err := flagPosition(paramsLevel, paramsEntity)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.Delete(ctx, level, entity, paramsName); err != nil {
			return eris.Wrap(err, "delete parameter")
		}
		zap.L().Info("parameter deleted",
			zap.String("level", string(level)),
			zap.String("entity_id", entity),
			zap.String("name", paramsName),
		)
		return nil
	},
}

// formatParameterRows writes a tabular view of parameter rows to w.
func formatParameterRows(out io.Writer, defs []model.ParameterDefinition) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tVALUE\tTYPE\tOVERRIDE\tROWVER\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----\t--------\t------\t-------")

	for _, d := range defs {
		override := "-"
		if d.IsOverride {
			override = "yes"
			if d.SourceLevel != nil {
				override = "yes (" + string(*d.SourceLevel) + ")"
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			d.ID,
			d.Name,
			truncate(d.Value, 40),
			d.Type,
			override,
			d.RowVersion,
			d.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	for _, c := range []*cobra.Command{paramsListCmd, paramsGetCmd, paramsSetCmd, paramsDeleteCmd} {
		c.Flags().StringVar(&paramsLevel, "level", "", "hierarchy level (required)")
		c.Flags().StringVar(&paramsEntity, "entity", "", "entity id at the level")
		_ = c.MarkFlagRequired("level")
	}
	for _, c := range []*cobra.Command{paramsGetCmd, paramsSetCmd, paramsDeleteCmd} {
		c.Flags().StringVar(&paramsName, "name", "", "parameter name (required)")
		_ = c.MarkFlagRequired("name")
	}
	paramsSetCmd.Flags().StringVar(&paramsValue, "value", "", "parameter value (required)")
	paramsSetCmd.Flags().StringVar(&paramsType, "type", "", "value type for new parameters (string, number, boolean, json)")
	paramsSetCmd.Flags().StringVar(&paramsDesc, "description", "", "parameter description")
	paramsSetCmd.Flags().StringVar(&paramsUpdatedBy, "updated-by", "cli", "author recorded in version history")
	_ = paramsSetCmd.MarkFlagRequired("value")

	paramsCmd.AddCommand(paramsListCmd, paramsGetCmd, paramsSetCmd, paramsDeleteCmd)
	rootCmd.AddCommand(paramsCmd)
}
