package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Level
		wantErr bool
	}{
		{name: "system", input: "system", want: LevelSystem},
		{name: "supplier", input: "supplier", want: LevelSupplier},
		{name: "model type", input: "model_type", want: LevelModelType},
		{name: "model capability", input: "model_capability", want: LevelModelCapability},
		{name: "model", input: "model", want: LevelModel},
		{name: "agent", input: "agent", want: LevelAgent},
		{name: "unknown", input: "tenant", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "System", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelRankOrdering(t *testing.T) {
	levels := Levels()
	require.Len(t, levels, 6)
	assert.Equal(t, LevelSystem, levels[0])
	assert.Equal(t, LevelAgent, levels[len(levels)-1])

	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1].Rank(), levels[i].Rank(),
			"%s must rank below %s", levels[i-1], levels[i])
	}
}

func TestParentOf(t *testing.T) {
	tests := []struct {
		level      Level
		wantParent Level
		wantOK     bool
	}{
		{level: LevelAgent, wantParent: LevelModel, wantOK: true},
		{level: LevelModel, wantParent: LevelModelCapability, wantOK: true},
		{level: LevelModelCapability, wantParent: LevelModelType, wantOK: true},
		{level: LevelModelType, wantParent: LevelSupplier, wantOK: true},
		{level: LevelSupplier, wantParent: LevelSystem, wantOK: true},
		{level: LevelSystem, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			parent, ok := ParentOf(tt.level)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantParent, parent)
			}
		})
	}
}

func TestMaxChainDepth(t *testing.T) {
	// A well-formed chain visits each level at most once.
	assert.Equal(t, len(Levels()), MaxChainDepth())
}

func TestSystemPosition(t *testing.T) {
	pos := SystemPosition()
	assert.Equal(t, LevelSystem, pos.Level)
	assert.Equal(t, SystemEntityID, pos.EntityID)
}
