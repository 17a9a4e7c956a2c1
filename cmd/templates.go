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
	"github.com/modelforge/paramd/internal/registry"
)

var (
	templatesFile      string
	templatesDir       string
	templatesRef       string
	templatesLevel     string
	templatesEntity    string
	templatesStrategy  string
	templatesUpdatedBy string
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage parameter templates",
	Long:  "Templates bundle parameter specs for bulk application. They can be loaded from YAML files or synced from the Notion template registry.",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		tpls, err := env.Store.ListTemplates(ctx)
		if err != nil {
			return eris.Wrap(err, "list templates")
		}
		if len(tpls) == 0 {
			zap.L().Info("no templates stored, run 'templates load' or 'templates sync'")
			return nil
		}

		formatTemplates(os.Stdout, tpls)
		return nil
	},
}

var templatesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load templates from YAML into the store",
	Long:  "Reads template documents from a file or directory and upserts them by name. Without flags the configured templates.dir is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		var tpls []model.Template
		switch {
		case templatesFile != "":
			tpls, err = registry.LoadTemplatesFromFile(templatesFile)
		case templatesDir != "":
			tpls, err = registry.LoadTemplatesFromDir(ctx, templatesDir)
		case cfg.Templates.Dir != "":
			tpls, err = registry.LoadTemplatesFromDir(ctx, cfg.Templates.Dir)
		default:
			return eris.New("no template source: pass --file or --dir, or set templates.dir")
		}
		if err != nil {
			return eris.Wrap(err, "load templates")
		}

		n, err := registry.Sync(ctx, env.Store, tpls)
		if err != nil {
			return eris.Wrap(err, "store templates")
		}
		zap.L().Info("templates loaded", zap.Int("count", n))
		return nil
	},
}

var templatesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync templates from the Notion registry",
	Long:  "Queries the configured Notion database for active templates and upserts them into the store. Malformed pages are skipped with a warning.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		client := registry.NewClient(cfg.Notion.Token, registry.WithRateLimit(cfg.Notion.RateLimit))
		tpls, err := registry.LoadTemplatesFromNotion(ctx, client, cfg.Notion.TemplateDB)
		if err != nil {
			return eris.Wrap(err, "load notion templates")
		}
		if len(tpls) == 0 {
			zap.L().Warn("notion registry returned no active templates")
			return nil
		}

		n, err := registry.Sync(ctx, env.Store, tpls)
		if err != nil {
			return eris.Wrap(err, "store templates")
		}
		zap.L().Info("templates synced from notion", zap.Int("count", n))
		return nil
	},
}

var templatesApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a template to a position",
	Long:  "Writes every parameter spec of the template to the given level/entity. The strategy controls what happens to names that already exist there.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, entity, err := flagPosition(templatesLevel, templatesEntity)
		if err != nil {
			return err
		}
		strategy, err := model.ParseApplyStrategy(templatesStrategy)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		tpl, err := env.Store.GetTemplateByName(ctx, templatesRef)
		if params.IsNotFound(err) {
			tpl, err = env.Store.GetTemplate(ctx, templatesRef)
		}
		if err != nil {
			return eris.Wrap(err, "look up template")
		}

		result, err := env.Applier.Apply(ctx, tpl.ID, level, entity, strategy, templatesUpdatedBy)
		if err != nil {
			return eris.Wrap(err, "apply template")
		}

		formatApplyResult(os.Stdout, result.Clean())
		if len(result.Failed) > 0 {
			return eris.Errorf("%d of %d parameters failed to apply", len(result.Failed), len(tpl.Parameters))
		}
		return nil
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a stored template",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		tpl, err := env.Store.GetTemplateByName(ctx, templatesRef)
		if params.IsNotFound(err) {
			tpl, err = env.Store.GetTemplate(ctx, templatesRef)
		}
		if err != nil {
			return eris.Wrap(err, "look up template")
		}

		if err := env.Store.DeleteTemplate(ctx, tpl.ID); err != nil {
			return eris.Wrap(err, "delete template")
		}
		zap.L().Info("template deleted", zap.String("name", tpl.Name), zap.String("id", tpl.ID))
		return nil
	},
}

// formatTemplates writes a tabular view of templates to w.
func formatTemplates(out io.Writer, tpls []model.Template) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tID\tLEVEL\tPARAMS\tUPDATED")
	_, _ = fmt.Fprintln(w, "----\t--\t-----\t------\t-------")

	for _, tpl := range tpls {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			tpl.Name,
			tpl.ID,
			tpl.TemplateLevel,
			len(tpl.Parameters),
			tpl.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatApplyResult writes the per-parameter outcomes of a template
// application to w.
func formatApplyResult(out io.Writer, result model.ApplyResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OUTCOME\tPARAMETER\tDETAIL")
	_, _ = fmt.Fprintln(w, "-------\t---------\t------")

	for _, name := range result.Applied {
		_, _ = fmt.Fprintf(w, "applied\t%s\t\n", name)
	}
	for _, name := range result.Overridden {
		_, _ = fmt.Fprintf(w, "overridden\t%s\t\n", name)
	}
	for _, name := range result.Skipped {
		_, _ = fmt.Fprintf(w, "skipped\t%s\t\n", name)
	}
	for _, f := range result.Failed {
		_, _ = fmt.Fprintf(w, "failed\t%s\t%s\n", f.Name, truncate(f.Reason, 60))
	}
	_ = w.Flush()
}

func init() {
	templatesLoadCmd.Flags().StringVar(&templatesFile, "file", "", "template YAML file")
	templatesLoadCmd.Flags().StringVar(&templatesDir, "dir", "", "directory of template YAML files")

	templatesApplyCmd.Flags().StringVar(&templatesRef, "template", "", "template name or id (required)")
	templatesApplyCmd.Flags().StringVar(&templatesLevel, "level", "", "target hierarchy level (required)")
	templatesApplyCmd.Flags().StringVar(&templatesEntity, "entity", "", "target entity id")
	templatesApplyCmd.Flags().StringVar(&templatesStrategy, "strategy", "", "skip_existing, override, or merge (default skip_existing)")
	templatesApplyCmd.Flags().StringVar(&templatesUpdatedBy, "updated-by", "cli", "author recorded in version history")
	_ = templatesApplyCmd.MarkFlagRequired("template")
	_ = templatesApplyCmd.MarkFlagRequired("level")

	templatesDeleteCmd.Flags().StringVar(&templatesRef, "template", "", "template name or id (required)")
	_ = templatesDeleteCmd.MarkFlagRequired("template")

	templatesCmd.AddCommand(templatesListCmd, templatesLoadCmd, templatesSyncCmd, templatesApplyCmd, templatesDeleteCmd)
	rootCmd.AddCommand(templatesCmd)
}
