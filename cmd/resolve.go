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
)

var (
	resolveLevel  string
	resolveEntity string
	resolveName   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the effective parameters of an entity",
	Long:  "Walks the ancestor chain of the given position and prints the value each parameter name resolves to, with its origin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, entity, err := flagPosition(resolveLevel, resolveEntity)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if resolveName != "" {
			eff, err := env.Resolver.ResolveOne(ctx, level, entity, resolveName)
			if err != nil {
				return eris.Wrap(err, "resolve parameter")
			}
			if eff == nil {
				return eris.Errorf("%s is not defined anywhere on the chain of %s/%s", resolveName, level, entity)
			}
			formatEffective(os.Stdout, []model.EffectiveParameter{*eff})
			return nil
		}

		effs, err := env.Resolver.Resolve(ctx, level, entity)
		if err != nil {
			return eris.Wrap(err, "resolve parameters")
		}
		if len(effs) == 0 {
			zap.L().Info("nothing resolves at this position",
				zap.String("level", string(level)),
				zap.String("entity_id", entity),
			)
			return nil
		}

		formatEffective(os.Stdout, effs)
		return nil
	},
}

// formatEffective writes a tabular view of resolved parameters to w.
func formatEffective(out io.Writer, effs []model.EffectiveParameter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVALUE\tTYPE\tORIGIN\tSOURCE")
	_, _ = fmt.Fprintln(w, "----\t-----\t----\t------\t------")

	for _, e := range effs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s/%s\n",
			e.Name,
			truncate(e.Value, 40),
			e.Type,
			e.Origin,
			e.SourceLevel,
			e.SourceEntityID,
		)
	}
	_ = w.Flush()
}

func init() {
	resolveCmd.Flags().StringVar(&resolveLevel, "level", "", "hierarchy level (required)")
	resolveCmd.Flags().StringVar(&resolveEntity, "entity", "", "entity id at the level")
	resolveCmd.Flags().StringVar(&resolveName, "name", "", "resolve a single parameter name")
	_ = resolveCmd.MarkFlagRequired("level")
	rootCmd.AddCommand(resolveCmd)
}
