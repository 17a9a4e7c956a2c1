// Package resolve computes the effective parameter set of an entity by
// walking its ancestor chain and merging definitions most specific first.
package resolve

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/resilience"
)

// ParentRef names the position an entity inherits from.
type ParentRef struct {
	Level    model.Level
	EntityID string
}

// EntityResolver supplies the entity hierarchy. Parent returns the
// position an entity inherits from, or ok=false when the chain ends
// there. Errors are treated as upstream failures and retried.
type EntityResolver interface {
	Parent(ctx context.Context, level model.Level, entityID string) (ParentRef, bool, error)
}

// Store is the read slice of the parameter store the resolver needs.
// All chain positions are fetched in a single call so each resolution
// sees one consistent snapshot.
type Store interface {
	ListForPositions(ctx context.Context, positions []model.Position) ([]model.ParameterDefinition, error)
}

// Resolver resolves effective parameters for hierarchy positions.
// Parent lookups run through a retry loop and a circuit breaker; the
// chain length is capped at the level count so a hierarchy that feeds
// back on itself fails loudly instead of looping.
type Resolver struct {
	entities EntityResolver
	store    Store
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// NewResolver wires a resolver over the given hierarchy and store.
func NewResolver(entities EntityResolver, store Store, retryCfg resilience.RetryConfig, breakerCfg resilience.CircuitBreakerConfig) *Resolver {
	retryCfg.OnRetry = resilience.RetryLogger("hierarchy", "parent_lookup")
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("parent lookup breaker state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &Resolver{
		entities: entities,
		store:    store,
		retry:    retryCfg,
		breaker:  resilience.NewCircuitBreaker(breakerCfg),
	}
}

// BreakerState reports the parent-lookup circuit state for health checks.
func (r *Resolver) BreakerState() resilience.CircuitState {
	return r.breaker.State()
}

// Resolve returns every parameter visible at (level, entityID): exactly
// one entry per name, sorted by name. A name defined at more than one
// chain position resolves to the most specific definition; the rest are
// shadowed.
func (r *Resolver) Resolve(ctx context.Context, level model.Level, entityID string) ([]model.EffectiveParameter, error) {
	chain, byPos, err := r.snapshot(ctx, level, entityID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	effective := make([]model.EffectiveParameter, 0)
	for i, pos := range chain {
		for name, def := range byPos[pos] {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			effective = append(effective, annotate(def, i == 0, chain[i+1:], byPos))
		}
	}
	sort.Slice(effective, func(i, j int) bool { return effective[i].Name < effective[j].Name })
	return effective, nil
}

// ResolveOne resolves a single name at (level, entityID). It returns
// nil with no error when the name is not defined anywhere on the chain.
func (r *Resolver) ResolveOne(ctx context.Context, level model.Level, entityID, name string) (*model.EffectiveParameter, error) {
	chain, byPos, err := r.snapshot(ctx, level, entityID)
	if err != nil {
		return nil, err
	}
	for i, pos := range chain {
		if def, ok := byPos[pos][name]; ok {
			eff := annotate(def, i == 0, chain[i+1:], byPos)
			return &eff, nil
		}
	}
	return nil, nil
}

// snapshot builds the ancestor chain and loads every definition on it
// with one store round trip.
func (r *Resolver) snapshot(ctx context.Context, level model.Level, entityID string) ([]model.Position, map[model.Position]map[string]model.ParameterDefinition, error) {
	chain, err := r.chain(ctx, level, entityID)
	if err != nil {
		return nil, nil, err
	}
	defs, err := r.store.ListForPositions(ctx, chain)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "resolve: load parameters for %s/%s", level, entityID)
	}
	byPos := make(map[model.Position]map[string]model.ParameterDefinition, len(chain))
	for _, def := range defs {
		pos := def.Position()
		if byPos[pos] == nil {
			byPos[pos] = make(map[string]model.ParameterDefinition)
		}
		byPos[pos][def.Name] = def
	}
	return chain, byPos, nil
}

// chain walks parent links from the requested position up to the system
// position, most specific first. The walk also stops where the hierarchy
// reports no parent, so a truncated catalog degrades to a shorter chain
// rather than an error.
func (r *Resolver) chain(ctx context.Context, level model.Level, entityID string) ([]model.Position, error) {
	if !level.Valid() {
		return nil, eris.Errorf("resolve: unknown level %q", level)
	}
	if entityID == "" {
		return nil, eris.New("resolve: entity id is empty")
	}

	positions := make([]model.Position, 0, model.MaxChainDepth())
	cur := model.Position{Level: level, EntityID: entityID}
	for {
		if len(positions) >= model.MaxChainDepth() {
			zap.L().Error("hierarchy cycle detected",
				zap.String("level", string(level)),
				zap.String("entity_id", entityID),
				zap.Int("chain_length", len(positions)+1),
			)
			return nil, &CycleGuardError{Level: level, EntityID: entityID}
		}
		positions = append(positions, cur)
		if cur.Level == model.LevelSystem {
			return positions, nil
		}
		parent, ok, err := r.parent(ctx, cur.Level, cur.EntityID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return positions, nil
		}
		cur = model.Position{Level: parent.Level, EntityID: parent.EntityID}
	}
}

func (r *Resolver) parent(ctx context.Context, level model.Level, entityID string) (ParentRef, bool, error) {
	type lookup struct {
		ref ParentRef
		ok  bool
	}
	res, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (lookup, error) {
		return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (lookup, error) {
			ref, ok, err := r.entities.Parent(ctx, level, entityID)
			return lookup{ref: ref, ok: ok}, err
		})
	})
	if err != nil {
		return ParentRef{}, false, &UpstreamLookupError{Level: level, EntityID: entityID, Err: err}
	}
	return res.ref, res.ok, nil
}

// annotate turns a winning definition into its effective form. For an
// override at the requested position the source fields point at the
// shadowed ancestor definition when one still exists on the chain, and
// fall back to the level recorded at write time otherwise.
func annotate(def model.ParameterDefinition, atRequested bool, above []model.Position, byPos map[model.Position]map[string]model.ParameterDefinition) model.EffectiveParameter {
	eff := model.EffectiveParameter{
		Name:           def.Name,
		Value:          def.Value,
		Type:           def.Type,
		Origin:         model.OriginInherited,
		SourceLevel:    def.Level,
		SourceEntityID: def.EntityID,
		Definition:     def,
	}
	if !atRequested {
		return eff
	}
	if !def.IsOverride {
		eff.Origin = model.OriginCustom
		return eff
	}
	eff.Origin = model.OriginOverride
	for _, pos := range above {
		if shadowed, ok := byPos[pos][def.Name]; ok {
			eff.SourceLevel = shadowed.Level
			eff.SourceEntityID = shadowed.EntityID
			return eff
		}
	}
	if def.SourceLevel != nil {
		eff.SourceLevel = *def.SourceLevel
	}
	return eff
}
