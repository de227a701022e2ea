package reconcile

import (
	"errors"
	"fmt"
)

// ErrDuplicatePropertyName is returned when one observation carries the same
// property name twice. Nothing is written in that case.
var ErrDuplicatePropertyName = errors.New("duplicate property name")

// Property is a name/value row owned by a single entity.
type Property interface {
	PropertyName() string
	PropertyValue() string
	SetPropertyValue(v string)
}

// PropertyStore persists property changes for one owner. Create is expected to
// attach the candidate to the owner before saving it.
type PropertyStore[P Property] interface {
	Create(p P) error
	Update(p P) error
	Delete(p P) error
}

type PropertyUpdate[P Property] struct {
	Persisted P
	NewValue  string
}

// PropertyPlan is the diff between persisted and candidate properties, keyed
// by name. Unchanged rows keep their identity.
type PropertyPlan[P Property] struct {
	Create    []P
	Update    []PropertyUpdate[P]
	Unchanged []P
	Delete    []P
}

type PropertyResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
}

func (r PropertyResult) Changed() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// PlanProperties computes the three-way diff without touching anything.
func PlanProperties[P Property](persisted, candidates []P) (PropertyPlan[P], error) {
	var plan PropertyPlan[P]
	if err := checkDuplicateNames(candidates); err != nil {
		return plan, err
	}

	pending := make([]P, len(persisted))
	copy(pending, persisted)

	for _, cand := range candidates {
		idx := indexByName(pending, cand.PropertyName())
		if idx < 0 {
			plan.Create = append(plan.Create, cand)
			continue
		}
		found := pending[idx]
		if found.PropertyValue() != cand.PropertyValue() {
			plan.Update = append(plan.Update, PropertyUpdate[P]{Persisted: found, NewValue: cand.PropertyValue()})
		} else {
			plan.Unchanged = append(plan.Unchanged, found)
		}
		pending = append(pending[:idx], pending[idx+1:]...)
	}
	plan.Delete = pending
	return plan, nil
}

// ApplyProperties executes a plan. Updates mutate the persisted row in place so
// its identity survives.
func ApplyProperties[P Property](plan PropertyPlan[P], store PropertyStore[P]) (PropertyResult, error) {
	res := PropertyResult{Unchanged: len(plan.Unchanged)}
	for _, u := range plan.Update {
		u.Persisted.SetPropertyValue(u.NewValue)
		if err := store.Update(u.Persisted); err != nil {
			return res, fmt.Errorf("update property %q: %w", u.Persisted.PropertyName(), err)
		}
		res.Updated++
	}
	for _, c := range plan.Create {
		if err := store.Create(c); err != nil {
			return res, fmt.Errorf("create property %q: %w", c.PropertyName(), err)
		}
		res.Created++
	}
	for _, d := range plan.Delete {
		if err := store.Delete(d); err != nil {
			return res, fmt.Errorf("delete property %q: %w", d.PropertyName(), err)
		}
		res.Deleted++
	}
	return res, nil
}

// ReconcileProperties makes the owner's properties equal candidates by name.
func ReconcileProperties[P Property](persisted, candidates []P, store PropertyStore[P]) (PropertyResult, error) {
	plan, err := PlanProperties(persisted, candidates)
	if err != nil {
		return PropertyResult{}, err
	}
	return ApplyProperties(plan, store)
}

func checkDuplicateNames[P Property](candidates []P) error {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		name := c.PropertyName()
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicatePropertyName, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func indexByName[P Property](props []P, name string) int {
	for i, p := range props {
		if p.PropertyName() == name {
			return i
		}
	}
	return -1
}
