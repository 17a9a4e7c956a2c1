package resolve

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/resilience"
)

type fakeHierarchy struct {
	parents  map[model.Position]ParentRef
	failures int
	err      error
	calls    int
}

func (h *fakeHierarchy) Parent(_ context.Context, level model.Level, entityID string) (ParentRef, bool, error) {
	h.calls++
	if h.failures > 0 {
		h.failures--
		return ParentRef{}, false, h.err
	}
	ref, ok := h.parents[model.Position{Level: level, EntityID: entityID}]
	return ref, ok, nil
}

type fakeStore struct {
	defs      []model.ParameterDefinition
	lastQuery []model.Position
	queries   int
	err       error
}

func (s *fakeStore) ListForPositions(_ context.Context, positions []model.Position) ([]model.ParameterDefinition, error) {
	s.queries++
	s.lastQuery = positions
	if s.err != nil {
		return nil, s.err
	}
	want := make(map[model.Position]struct{}, len(positions))
	for _, p := range positions {
		want[p] = struct{}{}
	}
	var out []model.ParameterDefinition
	for _, d := range s.defs {
		if _, ok := want[d.Position()]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// acmeHierarchy builds the full six-level chain used across these tests:
// agent support-bot -> model acme/gpt -> model_capability chat ->
// model_type llm -> supplier acme -> system.
func acmeHierarchy() *fakeHierarchy {
	return &fakeHierarchy{parents: map[model.Position]ParentRef{
		{Level: model.LevelSupplier, EntityID: "acme"}:        {Level: model.LevelSystem, EntityID: model.SystemEntityID},
		{Level: model.LevelModelType, EntityID: "llm"}:        {Level: model.LevelSupplier, EntityID: "acme"},
		{Level: model.LevelModelCapability, EntityID: "chat"}: {Level: model.LevelModelType, EntityID: "llm"},
		{Level: model.LevelModel, EntityID: "acme/gpt"}:       {Level: model.LevelModelCapability, EntityID: "chat"},
		{Level: model.LevelAgent, EntityID: "support-bot"}:    {Level: model.LevelModel, EntityID: "acme/gpt"},
	}}
}

func def(level model.Level, entityID, name, value string, typ model.ValueType) model.ParameterDefinition {
	return model.ParameterDefinition{
		ID:       uuid.New().String(),
		Level:    level,
		EntityID: entityID,
		Name:     name,
		Value:    value,
		Type:     typ,
	}
}

func newTestResolver(h EntityResolver, s Store) *Resolver {
	retry := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		JitterFraction: 0,
	}
	breaker := resilience.CircuitBreakerConfig{FailureThreshold: 100}
	return NewResolver(h, s, retry, breaker)
}

func TestResolve_InheritsFromSystem(t *testing.T) {
	st := &fakeStore{defs: []model.ParameterDefinition{
		def(model.LevelSystem, model.SystemEntityID, "temperature", "0.5", model.TypeNumber),
	}}
	r := newTestResolver(acmeHierarchy(), st)

	got, err := r.Resolve(context.Background(), model.LevelSupplier, "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "temperature", got[0].Name)
	assert.Equal(t, "0.5", got[0].Value)
	assert.Equal(t, model.OriginInherited, got[0].Origin)
	assert.Equal(t, model.LevelSystem, got[0].SourceLevel)
	assert.Equal(t, model.SystemEntityID, got[0].SourceEntityID)
}

func TestResolve_OverrideShadowsAncestor(t *testing.T) {
	src := model.LevelSystem
	override := def(model.LevelModel, "acme/gpt", "max_tokens", "8000", model.TypeNumber)
	override.IsOverride = true
	override.SourceLevel = &src

	st := &fakeStore{defs: []model.ParameterDefinition{
		def(model.LevelSystem, model.SystemEntityID, "max_tokens", "1000", model.TypeNumber),
		override,
	}}
	r := newTestResolver(acmeHierarchy(), st)

	got, err := r.Resolve(context.Background(), model.LevelModel, "acme/gpt")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "8000", got[0].Value)
	assert.Equal(t, model.OriginOverride, got[0].Origin)
	assert.Equal(t, model.LevelSystem, got[0].SourceLevel)
	assert.Equal(t, model.SystemEntityID, got[0].SourceEntityID)

	// An ancestor of the overriding model still sees the system value.
	got, err = r.Resolve(context.Background(), model.LevelSupplier, "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1000", got[0].Value)
	assert.Equal(t, model.OriginInherited, got[0].Origin)

	// A descendant of the overriding model inherits the override, and the
	// source points at the model that owns the winning row.
	got, err = r.Resolve(context.Background(), model.LevelAgent, "support-bot")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "8000", got[0].Value)
	assert.Equal(t, model.OriginInherited, got[0].Origin)
	assert.Equal(t, model.LevelModel, got[0].SourceLevel)
	assert.Equal(t, "acme/gpt", got[0].SourceEntityID)
}

func TestResolve_MostSpecificWinsPerName(t *testing.T) {
	st := &fakeStore{defs: []model.ParameterDefinition{
		def(model.LevelSystem, model.SystemEntityID, "temperature", "0.5", model.TypeNumber),
		def(model.LevelSystem, model.SystemEntityID, "max_tokens", "1000", model.TypeNumber),
		def(model.LevelSystem, model.SystemEntityID, "log_level", "info", model.TypeString),
		def(model.LevelModelType, "llm", "temperature", "0.7", model.TypeNumber),
		def(model.LevelAgent, "support-bot", "log_level", "debug", model.TypeString),
	}}
	r := newTestResolver(acmeHierarchy(), st)

	got, err := r.Resolve(context.Background(), model.LevelAgent, "support-bot")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Sorted by name.
	assert.Equal(t, "log_level", got[0].Name)
	assert.Equal(t, "max_tokens", got[1].Name)
	assert.Equal(t, "temperature", got[2].Name)

	assert.Equal(t, "debug", got[0].Value)
	assert.Equal(t, model.OriginCustom, got[0].Origin)
	assert.Equal(t, model.LevelAgent, got[0].SourceLevel)

	assert.Equal(t, "1000", got[1].Value)
	assert.Equal(t, model.OriginInherited, got[1].Origin)
	assert.Equal(t, model.LevelSystem, got[1].SourceLevel)

	assert.Equal(t, "0.7", got[2].Value)
	assert.Equal(t, model.OriginInherited, got[2].Origin)
	assert.Equal(t, model.LevelModelType, got[2].SourceLevel)
	assert.Equal(t, "llm", got[2].SourceEntityID)
}

func TestResolve_SystemPositionIsCustomOnly(t *testing.T) {
	st := &fakeStore{defs: []model.ParameterDefinition{
		def(model.LevelSystem, model.SystemEntityID, "temperature", "0.5", model.TypeNumber),
		def(model.LevelSystem, model.SystemEntityID, "mode", "strict", model.TypeString),
	}}
	r := newTestResolver(acmeHierarchy(), st)

	got, err := r.Resolve(context.Background(), model.LevelSystem, model.SystemEntityID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, eff := range got {
		assert.Equal(t, model.OriginCustom, eff.Origin)
		assert.Equal(t, model.LevelSystem, eff.SourceLevel)
	}
}

func TestResolve_SingleSnapshotQuery(t *testing.T) {
	st := &fakeStore{}
	r := newTestResolver(acmeHierarchy(), st)

	_, err := r.Resolve(context.Background(), model.LevelAgent, "support-bot")
	require.NoError(t, err)

	assert.Equal(t, 1, st.queries)
	assert.Equal(t, []model.Position{
		{Level: model.LevelAgent, EntityID: "support-bot"},
		{Level: model.LevelModel, EntityID: "acme/gpt"},
		{Level: model.LevelModelCapability, EntityID: "chat"},
		{Level: model.LevelModelType, EntityID: "llm"},
		{Level: model.LevelSupplier, EntityID: "acme"},
		{Level: model.LevelSystem, EntityID: model.SystemEntityID},
	}, st.lastQuery)
}

func TestResolve_UnknownEntityTruncatesChain(t *testing.T) {
	h := acmeHierarchy()
	delete(h.parents, model.Position{Level: model.LevelModelType, EntityID: "llm"})
	st := &fakeStore{defs: []model.ParameterDefinition{
		def(model.LevelSystem, model.SystemEntityID, "temperature", "0.5", model.TypeNumber),
		def(model.LevelModelType, "llm", "top_p", "0.9", model.TypeNumber),
	}}
	r := newTestResolver(h, st)

	got, err := r.Resolve(context.Background(), model.LevelModelType, "llm")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "top_p", got[0].Name)
	assert.Equal(t, model.OriginCustom, got[0].Origin)
}

func TestResolve_RejectsBadPosition(t *testing.T) {
	r := newTestResolver(acmeHierarchy(), &fakeStore{})

	_, err := r.Resolve(context.Background(), model.Level("galaxy"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown level")

	_, err = r.Resolve(context.Background(), model.LevelAgent, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity id is empty")
}

func TestResolve_CycleGuard(t *testing.T) {
	h := &fakeHierarchy{parents: map[model.Position]ParentRef{
		{Level: model.LevelAgent, EntityID: "a"}: {Level: model.LevelModel, EntityID: "b"},
		{Level: model.LevelModel, EntityID: "b"}: {Level: model.LevelAgent, EntityID: "a"},
	}}
	st := &fakeStore{}
	r := newTestResolver(h, st)

	_, err := r.Resolve(context.Background(), model.LevelAgent, "a")
	require.Error(t, err)
	assert.True(t, IsCycleGuard(err))
	assert.False(t, IsUpstreamLookup(err))
	assert.Zero(t, st.queries)

	var ce *CycleGuardError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, model.LevelAgent, ce.Level)
	assert.Equal(t, "a", ce.EntityID)
}

func TestResolve_RetriesTransientParentFailures(t *testing.T) {
	h := acmeHierarchy()
	h.failures = 2
	h.err = resilience.NewTransientError(eris.New("hierarchy store timeout"))
	st := &fakeStore{defs: []model.ParameterDefinition{
		def(model.LevelSystem, model.SystemEntityID, "temperature", "0.5", model.TypeNumber),
	}}
	r := newTestResolver(h, st)

	got, err := r.Resolve(context.Background(), model.LevelSupplier, "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, h.calls)
}

func TestResolve_UpstreamLookupErrorAfterRetries(t *testing.T) {
	h := acmeHierarchy()
	h.failures = 10
	h.err = resilience.NewTransientError(eris.New("hierarchy store timeout"))
	r := newTestResolver(h, &fakeStore{})

	_, err := r.Resolve(context.Background(), model.LevelSupplier, "acme")
	require.Error(t, err)
	assert.True(t, IsUpstreamLookup(err))
	assert.False(t, IsCycleGuard(err))
	assert.Equal(t, 3, h.calls)

	var ue *UpstreamLookupError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, model.LevelSupplier, ue.Level)
	assert.Equal(t, "acme", ue.EntityID)
}

func TestResolve_NonTransientParentFailureFailsFast(t *testing.T) {
	h := acmeHierarchy()
	h.failures = 10
	h.err = eris.New("entity catalog rejected query")
	r := newTestResolver(h, &fakeStore{})

	_, err := r.Resolve(context.Background(), model.LevelSupplier, "acme")
	require.Error(t, err)
	assert.True(t, IsUpstreamLookup(err))
	assert.Equal(t, 1, h.calls)
}

func TestResolve_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	h := acmeHierarchy()
	h.failures = 100
	h.err = resilience.NewTransientError(eris.New("hierarchy store down"))
	retry := resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	r := NewResolver(h, &fakeStore{}, retry, resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), model.LevelSupplier, "acme")
		require.Error(t, err)
	}
	require.Equal(t, 2, h.calls)
	assert.Equal(t, resilience.CircuitOpen, r.BreakerState())

	// Open circuit rejects before reaching the hierarchy.
	_, err := r.Resolve(context.Background(), model.LevelSupplier, "acme")
	require.Error(t, err)
	assert.True(t, IsUpstreamLookup(err))
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, 2, h.calls)
}

func TestResolveOne(t *testing.T) {
	src := model.LevelSystem
	override := def(model.LevelModel, "acme/gpt", "temperature", "0.7", model.TypeNumber)
	override.IsOverride = true
	override.SourceLevel = &src

	st := &fakeStore{defs: []model.ParameterDefinition{
		def(model.LevelSystem, model.SystemEntityID, "temperature", "0.5", model.TypeNumber),
		override,
	}}
	r := newTestResolver(acmeHierarchy(), st)

	eff, err := r.ResolveOne(context.Background(), model.LevelModel, "acme/gpt", "temperature")
	require.NoError(t, err)
	require.NotNil(t, eff)
	assert.Equal(t, "0.7", eff.Value)
	assert.Equal(t, model.OriginOverride, eff.Origin)
	assert.Equal(t, model.LevelSystem, eff.SourceLevel)

	eff, err = r.ResolveOne(context.Background(), model.LevelAgent, "support-bot", "temperature")
	require.NoError(t, err)
	require.NotNil(t, eff)
	assert.Equal(t, "0.7", eff.Value)
	assert.Equal(t, model.OriginInherited, eff.Origin)

	eff, err = r.ResolveOne(context.Background(), model.LevelAgent, "support-bot", "no_such_name")
	require.NoError(t, err)
	assert.Nil(t, eff)
}

// TestResolve_RandomChains checks the core resolution property on random
// hierarchies: for every name defined anywhere on the chain, the result
// holds exactly one entry and its value comes from the most specific
// defining position.
func TestResolve_RandomChains(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	levels := model.Levels()
	names := []string{"temperature", "max_tokens", "top_p", "log_level", "mode"}

	for trial := 0; trial < 60; trial++ {
		depth := rng.Intn(6)
		chain := make([]model.Position, 0, depth+1)
		for i := depth; i >= 0; i-- {
			pos := model.Position{Level: levels[i], EntityID: fmt.Sprintf("e%d", i)}
			if levels[i] == model.LevelSystem {
				pos.EntityID = model.SystemEntityID
			}
			chain = append(chain, pos)
		}

		h := &fakeHierarchy{parents: make(map[model.Position]ParentRef)}
		for i := 0; i+1 < len(chain); i++ {
			h.parents[chain[i]] = ParentRef{Level: chain[i+1].Level, EntityID: chain[i+1].EntityID}
		}

		st := &fakeStore{}
		want := make(map[string]string)
		for _, name := range names {
			for i := len(chain) - 1; i >= 0; i-- {
				if rng.Intn(3) != 0 {
					continue
				}
				value := fmt.Sprintf("%d", i)
				st.defs = append(st.defs, def(chain[i].Level, chain[i].EntityID, name, value, model.TypeNumber))
				want[name] = value
			}
		}

		r := newTestResolver(h, st)
		got, err := r.Resolve(context.Background(), chain[0].Level, chain[0].EntityID)
		require.NoError(t, err, "trial %d", trial)
		require.Len(t, got, len(want), "trial %d", trial)
		for _, eff := range got {
			assert.Equal(t, want[eff.Name], eff.Value, "trial %d name %s", trial, eff.Name)
		}
		assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Name < got[j].Name }))
	}
}
