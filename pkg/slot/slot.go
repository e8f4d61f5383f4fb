// Package slot holds the named slots a user compares, each bound to at most
// one entity id.
package slot

import (
	"fmt"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

// Name identifies a slot.
type Name string

// Slots used by comparison mode and by the quest.
const (
	A     Name = "A"
	B     Name = "B"
	Mine  Name = "mine"
	Other Name = "other"
)

// CompareSlots are the two panels of comparison mode.
var CompareSlots = []Name{A, B}

// QuestSlots are the slots the quest binds.
var QuestSlots = []Name{Mine, Other}

// Binding is the state of one slot. An empty ID means the slot is empty.
type Binding struct {
	Name Name
	ID   string
}

// Bound reports whether the slot holds an entity.
func (b Binding) Bound() bool { return b.ID != "" }

func (b Binding) String() string {
	if !b.Bound() {
		return fmt.Sprintf("%s=empty", b.Name)
	}
	return fmt.Sprintf("%s=%s", b.Name, b.ID)
}

// Op is a side effect a binding change asks the caller to perform.
type Op struct {
	Slot Name
	// ID is the entity to bind, or "" to clear.
	ID string
}

// Clears reports whether the op empties its slot.
func (o Op) Clears() bool { return o.ID == "" }

// Set is the collection of slots of one session. Exactly one Binding exists
// per registered name.
type Set struct {
	order []Name
	ids   map[Name]string
}

// NewSet registers the given slot names, all empty.
func NewSet(names ...Name) *Set {
	s := &Set{ids: make(map[Name]string, len(names))}
	for _, n := range names {
		if _, dup := s.ids[n]; dup {
			continue
		}
		s.order = append(s.order, n)
		s.ids[n] = ""
	}
	return s
}

// Has reports whether name is a registered slot.
func (s *Set) Has(name Name) bool {
	_, ok := s.ids[name]
	return ok
}

// Get returns the binding of a slot.
func (s *Set) Get(name Name) Binding {
	return Binding{Name: name, ID: s.ids[name]}
}

// ID returns the bound id, or "".
func (s *Set) ID(name Name) string { return s.ids[name] }

// Names returns the registered slot names in registration order.
func (s *Set) Names() []Name { return s.order }

// Bindings returns every slot's binding in registration order.
func (s *Set) Bindings() []Binding {
	out := make([]Binding, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.Get(n))
	}
	return out
}

// Bind moves name to Bound(id). Call it only once the entity is fetched.
func (s *Set) Bind(name Name, id string) error {
	if !s.Has(name) {
		return fmt.Errorf("unknown slot %q", name)
	}
	id = model.NormalizeID(id)
	if id == "" {
		return fmt.Errorf("bind %s: empty id", name)
	}
	s.ids[name] = id
	return nil
}

// Clear empties name and reports whether it was bound.
func (s *Set) Clear(name Name) bool {
	if s.ids[name] == "" {
		return false
	}
	s.ids[name] = ""
	return true
}

// SwapPlan returns the ops that exchange x and y: each bound id is rebound
// into the other slot and a slot whose partner was empty is cleared. Both
// empty yields no ops. The plan is not applied.
func (s *Set) SwapPlan(x, y Name) []Op {
	xi, yi := s.ids[x], s.ids[y]
	if xi == "" && yi == "" {
		return nil
	}
	return []Op{{Slot: x, ID: yi}, {Slot: y, ID: xi}}
}

// Apply performs ops directly on the set.
func (s *Set) Apply(ops []Op) {
	for _, op := range ops {
		if op.Clears() {
			s.Clear(op.Slot)
			continue
		}
		_ = s.Bind(op.Slot, op.ID)
	}
}
