package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/warungworks/costing-cli/internal/model"
)

// MemoryStore is an in-memory Store used by tests and the demo seed path.
type MemoryStore struct {
	mu          sync.RWMutex
	ingredients map[string]model.Ingredient
	purchases   map[string][]seqObservation // per ingredient, append order
	recipes     map[string]model.Recipe
	components  []model.RecipeComponent
	snapshots   map[string][]model.CostSnapshot // per recipe, append order
	seq         int64
}

type seqObservation struct {
	obs model.PurchaseObservation
	seq int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		ingredients: make(map[string]model.Ingredient),
		purchases:   make(map[string][]seqObservation),
		recipes:     make(map[string]model.Recipe),
		snapshots:   make(map[string][]model.CostSnapshot),
	}
}

func (s *MemoryStore) GetIngredient(_ context.Context, id string) (*model.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ing, ok := s.ingredients[id]
	if !ok {
		return nil, eris.Wrapf(model.ErrNotFound, "memory: ingredient %s", id)
	}
	return &ing, nil
}

func (s *MemoryStore) SaveIngredient(_ context.Context, ing *model.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[ing.ID] = *ing
	return nil
}

func (s *MemoryStore) ImportIngredients(ctx context.Context, ings []model.Ingredient) (int, error) {
	for i := range ings {
		if err := s.SaveIngredient(ctx, &ings[i]); err != nil {
			return 0, err
		}
	}
	return len(ings), nil
}

func (s *MemoryStore) ListIngredientIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.ingredients))
	for id := range s.ingredients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) AppendPurchase(_ context.Context, obs model.PurchaseObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.purchases[obs.IngredientID] = append(s.purchases[obs.IngredientID], seqObservation{obs: obs, seq: s.seq})
	return nil
}

func (s *MemoryStore) RecentPurchases(_ context.Context, ingredientID string, n int) ([]model.PurchaseObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := append([]seqObservation(nil), s.purchases[ingredientID]...)
	// Newest first; insertion order breaks timestamp ties.
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].obs.OccurredAt.Equal(all[j].obs.OccurredAt) {
			return all[i].obs.OccurredAt.After(all[j].obs.OccurredAt)
		}
		return all[i].seq > all[j].seq
	})
	if n < len(all) {
		all = all[:n]
	}
	out := make([]model.PurchaseObservation, 0, len(all))
	for _, so := range all {
		out = append(out, so.obs)
	}
	return out, nil
}

func (s *MemoryStore) PruneObservations(ctx context.Context, keep int) (int, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.purchases))
	for id := range s.purchases {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	pruned := 0
	for _, id := range ids {
		recent, err := s.RecentPurchases(ctx, id, keep)
		if err != nil {
			return pruned, err
		}
		keepIDs := make(map[string]bool, len(recent))
		for _, o := range recent {
			keepIDs[o.ID] = true
		}
		s.mu.Lock()
		var kept []seqObservation
		for _, so := range s.purchases[id] {
			if keepIDs[so.obs.ID] {
				kept = append(kept, so)
			} else {
				pruned++
			}
		}
		s.purchases[id] = kept
		s.mu.Unlock()
	}
	return pruned, nil
}

func (s *MemoryStore) GetRecipe(_ context.Context, id string) (*model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipes[id]
	if !ok {
		return nil, eris.Wrapf(model.ErrNotFound, "memory: recipe %s", id)
	}
	return &r, nil
}

func (s *MemoryStore) SaveRecipe(_ context.Context, r *model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes[r.ID] = *r
	return nil
}

func (s *MemoryStore) ListRecipeIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.recipes))
	for id := range s.recipes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ComponentsByRecipe(_ context.Context, recipeID string) ([]model.RecipeComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var comps []model.RecipeComponent
	for _, c := range s.components {
		if c.RecipeID == recipeID {
			comps = append(comps, c)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].IngredientID < comps[j].IngredientID })
	return comps, nil
}

func (s *MemoryStore) ComponentsByIngredient(_ context.Context, ingredientID string) ([]model.RecipeComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var comps []model.RecipeComponent
	for _, c := range s.components {
		if c.IngredientID == ingredientID {
			comps = append(comps, c)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].RecipeID < comps[j].RecipeID })
	return comps, nil
}

func (s *MemoryStore) SaveComponent(_ context.Context, c model.RecipeComponent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.components {
		if existing.RecipeID == c.RecipeID && existing.IngredientID == c.IngredientID {
			s.components[i] = c
			return nil
		}
	}
	s.components = append(s.components, c)
	return nil
}

func (s *MemoryStore) ImportComponents(ctx context.Context, comps []model.RecipeComponent) (int, error) {
	for _, c := range comps {
		if err := s.SaveComponent(ctx, c); err != nil {
			return 0, err
		}
	}
	return len(comps), nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *model.CostSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.RecipeID] = append(s.snapshots[snap.RecipeID], *snap)
	return nil
}

func (s *MemoryStore) LatestSnapshots(_ context.Context, recipeID string, n int) ([]model.CostSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := append([]model.CostSnapshot(nil), s.snapshots[recipeID]...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CapturedAt.After(all[j].CapturedAt) })
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
