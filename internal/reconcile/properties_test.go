package reconcile

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prop struct {
	id    int
	name  string
	value string
}

func (p *prop) PropertyName() string      { return p.name }
func (p *prop) PropertyValue() string     { return p.value }
func (p *prop) SetPropertyValue(v string) { p.value = v }

// memProps is an owner's property table in memory.
type memProps struct {
	nextID  int
	rows    map[int]*prop
	calls   []string
	failOn  string
	failErr error
}

func newMemProps(initial ...*prop) *memProps {
	m := &memProps{rows: map[int]*prop{}, nextID: 100}
	for _, p := range initial {
		m.rows[p.id] = p
	}
	return m
}

func (m *memProps) persisted() []*prop {
	out := make([]*prop, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (m *memProps) Create(p *prop) error {
	if m.failOn == "create" {
		return m.failErr
	}
	m.nextID++
	p.id = m.nextID
	m.rows[p.id] = p
	m.calls = append(m.calls, "create:"+p.name)
	return nil
}

func (m *memProps) Update(p *prop) error {
	if m.failOn == "update" {
		return m.failErr
	}
	m.rows[p.id] = p
	m.calls = append(m.calls, "update:"+p.name)
	return nil
}

func (m *memProps) Delete(p *prop) error {
	delete(m.rows, p.id)
	m.calls = append(m.calls, "delete:"+p.name)
	return nil
}

func byName(props []*prop) map[string]string {
	out := map[string]string{}
	for _, p := range props {
		out[p.name] = p.value
	}
	return out
}

func TestReconcileProperties_CreateOnEmpty(t *testing.T) {
	store := newMemProps()
	res, err := ReconcileProperties(store.persisted(), []*prop{{name: "__grabone_id", value: "42"}}, PropertyStore[*prop](store))
	require.NoError(t, err)
	assert.Equal(t, PropertyResult{Created: 1}, res)
	assert.Equal(t, map[string]string{"__grabone_id": "42"}, byName(store.persisted()))
}

func TestReconcileProperties_UpdateKeepsIdentity(t *testing.T) {
	store := newMemProps(&prop{id: 1, name: "__grabone_id", value: "42"})
	res, err := ReconcileProperties(store.persisted(), []*prop{{name: "__grabone_id", value: "43"}}, PropertyStore[*prop](store))
	require.NoError(t, err)
	assert.Equal(t, PropertyResult{Updated: 1}, res)

	rows := store.persisted()
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].id)
	assert.Equal(t, "43", rows[0].value)
}

func TestReconcileProperties_EmptyCandidatesDeleteAll(t *testing.T) {
	store := newMemProps(&prop{id: 1, name: "__grabone_id", value: "42"})
	res, err := ReconcileProperties(store.persisted(), []*prop{}, PropertyStore[*prop](store))
	require.NoError(t, err)
	assert.Equal(t, PropertyResult{Deleted: 1}, res)
	assert.Empty(t, store.persisted())
}

func TestReconcileProperties_Convergence(t *testing.T) {
	store := newMemProps(
		&prop{id: 1, name: "brand", value: "acme"},
		&prop{id: 2, name: "colour", value: "red"},
		&prop{id: 3, name: "size", value: "xl"},
	)
	candidates := []*prop{
		{name: "brand", value: "acme"},
		{name: "colour", value: "blue"},
		{name: "weight", value: "2kg"},
	}
	res, err := ReconcileProperties(store.persisted(), candidates, PropertyStore[*prop](store))
	require.NoError(t, err)
	assert.Equal(t, PropertyResult{Created: 1, Updated: 1, Unchanged: 1, Deleted: 1}, res)
	assert.Equal(t, map[string]string{"brand": "acme", "colour": "blue", "weight": "2kg"}, byName(store.persisted()))

	// unchanged and updated rows keep their ids
	ids := map[string]int{}
	for _, p := range store.persisted() {
		ids[p.name] = p.id
	}
	assert.Equal(t, 1, ids["brand"])
	assert.Equal(t, 2, ids["colour"])
}

func TestReconcileProperties_Idempotent(t *testing.T) {
	store := newMemProps()
	cands := func() []*prop { return []*prop{{name: "a", value: "1"}, {name: "b", value: "2"}} }
	_, err := ReconcileProperties(store.persisted(), cands(), PropertyStore[*prop](store))
	require.NoError(t, err)
	before := len(store.calls)

	res, err := ReconcileProperties(store.persisted(), cands(), PropertyStore[*prop](store))
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, 2, res.Unchanged)
	assert.Equal(t, before, len(store.calls), "second pass must not write")
	assert.Len(t, store.persisted(), 2)
}

func TestReconcileProperties_DuplicateNamesRejectedBeforeWrites(t *testing.T) {
	store := newMemProps(&prop{id: 1, name: "stale", value: "x"})
	_, err := ReconcileProperties(store.persisted(), []*prop{
		{name: "brand", value: "a"},
		{name: "brand", value: "b"},
	}, PropertyStore[*prop](store))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicatePropertyName))
	assert.Empty(t, store.calls)
	assert.Len(t, store.persisted(), 1)
}

func TestReconcileProperties_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	store := newMemProps(&prop{id: 1, name: "brand", value: "a"})
	store.failOn, store.failErr = "update", boom
	_, err := ReconcileProperties(store.persisted(), []*prop{{name: "brand", value: "b"}}, PropertyStore[*prop](store))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPlanProperties_NoSideEffects(t *testing.T) {
	persisted := []*prop{{id: 1, name: "brand", value: "acme"}}
	plan, err := PlanProperties(persisted, []*prop{{name: "brand", value: "other"}})
	require.NoError(t, err)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, "other", plan.Update[0].NewValue)
	assert.Equal(t, "acme", persisted[0].value, "planning must not mutate rows")
}
