// Package selection tracks the multi-select state of a visible entity list.
package selection

import (
	"sync"

	"github.com/entitylist/entitylist/internal/entity"
)

type Operation string

const (
	OpSelect   Operation = "select"
	OpDeselect Operation = "deselect"
)

// LastToggle remembers the most recent single toggle. Range toggles inherit
// its operation.
type LastToggle struct {
	EntityID  string    `json:"entityId"`
	Operation Operation `json:"operation"`
	Index     int       `json:"index"`
}

// Engine is an insertion-ordered selection over the visible entities.
type Engine struct {
	mu       sync.Mutex
	entities []entity.Entity
	index    map[string]int
	order    []string
	selected map[string]entity.Entity
	last     *LastToggle
}

func New() *Engine {
	return &Engine{
		index:    make(map[string]int),
		selected: make(map[string]entity.Entity),
	}
}

// SetEntities replaces the visible list and drops selected ids that are no
// longer visible. The last-toggle memory survives only if its entity does.
func (e *Engine) SetEntities(entities []entity.Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.entities = append([]entity.Entity(nil), entities...)
	e.index = make(map[string]int, len(entities))
	for i, ent := range e.entities {
		if _, dup := e.index[ent.ID()]; !dup {
			e.index[ent.ID()] = i
		}
	}

	kept := e.order[:0]
	for _, id := range e.order {
		i, ok := e.index[id]
		if !ok {
			delete(e.selected, id)
			continue
		}
		e.selected[id] = e.entities[i]
		kept = append(kept, id)
	}
	e.order = kept

	if e.last != nil {
		if i, ok := e.index[e.last.EntityID]; ok {
			e.last.Index = i
		} else {
			e.last = nil
		}
	}
}

func (e *Engine) Entities() []entity.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]entity.Entity(nil), e.entities...)
}

func (e *Engine) IsSelected(ent entity.Entity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.selected[ent.ID()]
	return ok
}

// Toggle flips one entity and remembers the operation for range toggles.
func (e *Engine) Toggle(ent entity.Entity, index int) []entity.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	op := OpSelect
	if _, ok := e.selected[ent.ID()]; ok {
		op = OpDeselect
	}
	e.applyLocked(ent, op)
	e.last = &LastToggle{EntityID: ent.ID(), Operation: op, Index: index}
	return e.selectedLocked()
}

// ToggleBatch applies the operation of the last single toggle, or select when
// there was none, to every entity. The last-toggle memory is left unchanged.
func (e *Engine) ToggleBatch(entities []entity.Entity) []entity.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	op := OpSelect
	if e.last != nil {
		op = e.last.Operation
	}
	for _, ent := range entities {
		e.applyLocked(ent, op)
	}
	return e.selectedLocked()
}

// Range returns the visible entities between the last single toggle and index,
// inclusive. Without a prior toggle the range is just index.
func (e *Engine) Range(index int) []entity.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rangeLocked(index)
}

// ShiftToggle toggles the range ending at index, as a shift-click does.
func (e *Engine) ShiftToggle(index int) []entity.Entity {
	return e.ToggleBatch(e.Range(index))
}

func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = nil
	e.selected = make(map[string]entity.Entity)
	e.last = nil
}

// ToggleAll clears a full selection, otherwise selects every visible entity.
func (e *Engine) ToggleAll() []entity.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.allSelectedLocked() {
		e.order = nil
		e.selected = make(map[string]entity.Entity)
		return e.selectedLocked()
	}
	for _, ent := range e.entities {
		e.applyLocked(ent, OpSelect)
	}
	return e.selectedLocked()
}

// Selected returns the selection in the order entities were selected.
func (e *Engine) Selected() []entity.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedLocked()
}

func (e *Engine) AllSelected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allSelectedLocked()
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

func (e *Engine) LastToggled() (LastToggle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return LastToggle{}, false
	}
	return *e.last, true
}

func (e *Engine) applyLocked(ent entity.Entity, op Operation) {
	id := ent.ID()
	_, selected := e.selected[id]
	switch {
	case op == OpSelect && !selected:
		e.selected[id] = ent
		e.order = append(e.order, id)
	case op == OpDeselect && selected:
		delete(e.selected, id)
		for i, existing := range e.order {
			if existing == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

func (e *Engine) selectedLocked() []entity.Entity {
	out := make([]entity.Entity, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.selected[id])
	}
	return out
}

// allSelectedLocked counts only visible ids; a toggled entity that is not in
// the list does not make up for an unselected row.
func (e *Engine) allSelectedLocked() bool {
	if len(e.index) == 0 {
		return false
	}
	for id := range e.index {
		if _, ok := e.selected[id]; !ok {
			return false
		}
	}
	return true
}

func (e *Engine) rangeLocked(index int) []entity.Entity {
	if len(e.entities) == 0 {
		return nil
	}
	anchor := index
	if e.last != nil {
		anchor = e.last.Index
	}
	lo, hi := min(anchor, index), max(anchor, index)
	lo = max(lo, 0)
	hi = min(hi, len(e.entities)-1)
	if lo > hi {
		return nil
	}
	return append([]entity.Entity(nil), e.entities[lo:hi+1]...)
}
