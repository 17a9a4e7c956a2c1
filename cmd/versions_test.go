package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/modelforge/paramd/internal/model"
)

func TestFormatVersions(t *testing.T) {
	first := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	records := []model.VersionRecord{
		{ID: "v-1", ParameterID: "p-1", VersionNumber: 1, Value: "0.7", UpdatedBy: "ops", UpdatedAt: first},
		{ID: "v-2", ParameterID: "p-1", VersionNumber: 2, Value: "0.9", UpdatedBy: "cli", UpdatedAt: first.Add(time.Hour)},
	}

	var buf bytes.Buffer
	formatVersions(&buf, records)

	output := buf.String()
	assert.Contains(t, output, "v-1")
	assert.Contains(t, output, "0.7")
	assert.Contains(t, output, "ops")
	assert.Contains(t, output, "v-2")
	assert.Contains(t, output, "0.9")
	assert.Contains(t, output, "2026-01-10 08:00")
	assert.Contains(t, output, "2026-01-10 09:00")
}

func TestFormatVersions_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatVersions(&buf, nil)

	assert.Contains(t, buf.String(), "VERSION")
	assert.Contains(t, buf.String(), "UPDATED BY")
}
