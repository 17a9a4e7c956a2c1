package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/modelforge/paramd/internal/model"
)

func TestFormatTemplates(t *testing.T) {
	updated := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)
	tpls := []model.Template{
		{
			ID:            "tpl-1",
			Name:          "llm-defaults",
			TemplateLevel: model.LevelSupplier,
			Parameters: []model.ParameterSpec{
				{Name: "temperature", Value: "0.7", Type: model.TypeNumber},
				{Name: "max_tokens", Value: "4096", Type: model.TypeNumber},
			},
			UpdatedAt: updated,
		},
	}

	var buf bytes.Buffer
	formatTemplates(&buf, tpls)

	output := buf.String()
	assert.Contains(t, output, "llm-defaults")
	assert.Contains(t, output, "tpl-1")
	assert.Contains(t, output, "supplier")
	assert.Contains(t, output, "2026-02-01 18:00")
}

func TestFormatApplyResult(t *testing.T) {
	result := model.ApplyResult{
		Applied:    []string{"max_tokens"},
		Overridden: []string{"temperature"},
		Skipped:    []string{"log_level"},
		Failed:     []model.ApplyFailure{{Name: "top_p", Reason: "0.99 is above maximum 0.5"}},
	}

	var buf bytes.Buffer
	formatApplyResult(&buf, result)

	output := buf.String()
	assert.Contains(t, output, "applied")
	assert.Contains(t, output, "max_tokens")
	assert.Contains(t, output, "overridden")
	assert.Contains(t, output, "temperature")
	assert.Contains(t, output, "skipped")
	assert.Contains(t, output, "log_level")
	assert.Contains(t, output, "top_p")
	assert.Contains(t, output, "above maximum")
}

func TestFormatApplyResult_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatApplyResult(&buf, model.ApplyResult{}.Clean())

	assert.Contains(t, buf.String(), "OUTCOME")
}
