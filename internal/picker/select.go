// Package picker implements the searchable select used to pick users and
// groups: a pure filter/selection state machine plus a Bubble Tea widget
// over it.
package picker

import "strings"

// Option is one selectable entry: the entity id and its display label.
// Callers building options from directory entities substitute the id for an
// empty display name.
type Option struct {
	Value string
	Text  string
}

// Mode controls how selections are emitted.
type Mode int

const (
	// Single emits the (at most one) selected option immediately on every
	// toggle.
	Single Mode = iota
	// Multi accumulates a selection set and emits it once, on submit.
	Multi
)

// Select is the state machine behind the picker widget: the full option
// set, a live substring filter over it, and a selection set that is
// independent of filter visibility. All operations are pure and
// synchronous.
//
// Selection state lives for the lifetime of the value; submitting does not
// clear it. Owners reset by constructing a fresh Select with a fresh
// option list.
type Select struct {
	mode     Mode
	options  []Option
	query    string
	visible  []int // Indices into options matching the query, in order
	selected map[string]bool
}

// NewSelect builds a Select over the given ordered options. With an empty
// query every option is visible.
func NewSelect(mode Mode, options []Option) *Select {
	s := &Select{
		mode:     mode,
		options:  append([]Option(nil), options...),
		selected: make(map[string]bool),
	}
	s.rebuildVisible()
	return s
}

// Mode returns the selection mode.
func (s *Select) Mode() Mode {
	return s.mode
}

// Len returns the size of the full option set.
func (s *Select) Len() int {
	return len(s.options)
}

// Query returns the current filter text.
func (s *Select) Query() string {
	return s.query
}

// SetQuery updates the filter and recomputes the visible subsequence:
// options whose text contains the query, both case-folded. The selection
// is untouched; hiding an option does not deselect it.
func (s *Select) SetQuery(q string) {
	s.query = q
	s.rebuildVisible()
}

func (s *Select) rebuildVisible() {
	s.visible = s.visible[:0]
	q := strings.ToLower(s.query)
	for i, opt := range s.options {
		if q == "" || strings.Contains(strings.ToLower(opt.Text), q) {
			s.visible = append(s.visible, i)
		}
	}
}

// VisibleLen returns the number of options matching the current query.
func (s *Select) VisibleLen() int {
	return len(s.visible)
}

// VisibleAt returns the i-th visible option.
func (s *Select) VisibleAt(i int) Option {
	return s.options[s.visible[i]]
}

// Visible returns the filtered subsequence in full-set order.
func (s *Select) Visible() []Option {
	out := make([]Option, len(s.visible))
	for i, idx := range s.visible {
		out[i] = s.options[idx]
	}
	return out
}

// IsSelected reports whether the option with the given value is selected.
func (s *Select) IsSelected(value string) bool {
	return s.selected[value]
}

// SelectedCount returns the size of the selection set.
func (s *Select) SelectedCount() int {
	return len(s.selected)
}

// Toggle flips the option with the given value.
//
// In Multi mode it only mutates the selection set; emit is always false.
// In Single mode the set is cleared first, the value inserted iff it was
// being turned on, and the resulting zero-or-one-element selection is
// returned with emit=true: single mode reports every toggle immediately.
func (s *Select) Toggle(value string) (emitted []Option, emit bool) {
	if s.mode == Multi {
		if s.selected[value] {
			delete(s.selected, value)
		} else {
			s.selected[value] = true
		}
		return nil, false
	}

	turningOn := !s.selected[value]
	clear(s.selected)
	if turningOn {
		s.selected[value] = true
	}
	return s.Selection(), true
}

// Selection returns the selected options in full-set order, regardless of
// click order or current filter. Selected values that no longer appear in
// the option set contribute nothing.
func (s *Select) Selection() []Option {
	var out []Option
	for _, opt := range s.options {
		if s.selected[opt.Value] {
			out = append(out, opt)
		}
	}
	return out
}

// CanSubmit reports whether submit is available: Multi mode with a
// non-empty selection set.
func (s *Select) CanSubmit() bool {
	return s.mode == Multi && len(s.selected) > 0
}

// Submit finalizes a Multi selection. It returns the ordered selection and
// emit=true, or emit=false when submitting is a no-op (Single mode or
// nothing selected). The selection set is left intact.
func (s *Select) Submit() (emitted []Option, emit bool) {
	if !s.CanSubmit() {
		return nil, false
	}
	return s.Selection(), true
}
