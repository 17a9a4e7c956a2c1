package registry

import (
	"context"
	"encoding/json"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/model"
)

// LoadTemplatesFromNotion queries the Notion template database for all
// active templates. Malformed pages are logged and skipped so one bad row
// never blocks a sync.
func LoadTemplatesFromNotion(ctx context.Context, client Client, dbID string) ([]model.Template, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: "Active",
			},
		},
	}

	pages, err := queryAll(ctx, client, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load template registry")
	}

	var templates []model.Template
	for _, p := range pages {
		tpl, err := parseTemplatePage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed template page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		templates = append(templates, tpl)
	}

	return templates, nil
}

func parseTemplatePage(p notionapi.Page) (model.Template, error) {
	var tpl model.Template

	// Name (title)
	if prop, ok := p.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			tpl.Name = plainText(tp.Title)
		}
	}

	// Level (select)
	if prop, ok := p.Properties["Level"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			tpl.TemplateLevel = model.Level(sp.Select.Name)
		}
	}

	// Description (rich_text)
	if prop, ok := p.Properties["Description"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			tpl.Description = plainText(rtp.RichText)
		}
	}

	// Parameters (rich_text holding a JSON array of specs)
	if prop, ok := p.Properties["Parameters"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			raw := plainText(rtp.RichText)
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &tpl.Parameters); err != nil {
					return tpl, eris.Wrap(err, "parse Parameters property")
				}
			}
		}
	}

	if err := tpl.Check(); err != nil {
		return tpl, err
	}
	return tpl, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
