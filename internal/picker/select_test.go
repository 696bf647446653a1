package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() []Option {
	return []Option{
		{Value: "u-1", Text: "Alice Adams"},
		{Value: "u-2", Text: "Bob Stone"},
		{Value: "u-3", Text: "Carol Chen"},
		{Value: "u-4", Text: "alina moore"},
	}
}

func visibleValues(s *Select) []string {
	var out []string
	for _, opt := range s.Visible() {
		out = append(out, opt.Value)
	}
	return out
}

func TestNewSelect_CopiesOptions(t *testing.T) {
	opts := testOptions()
	s := NewSelect(Multi, opts)

	opts[0] = Option{Value: "mutated", Text: "mutated"}

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, "u-1", s.VisibleAt(0).Value)
}

func TestSetQuery_FiltersCaseInsensitive(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	s.SetQuery("AL")

	assert.Equal(t, []string{"u-1", "u-4"}, visibleValues(s))
}

func TestSetQuery_EmptyShowsAll(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	s.SetQuery("bob")
	s.SetQuery("")

	assert.Equal(t, []string{"u-1", "u-2", "u-3", "u-4"}, visibleValues(s))
}

func TestSetQuery_PreservesFullSetOrder(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	s.SetQuery("o")

	// Matching options appear in the same relative order as the full set.
	assert.Equal(t, []string{"u-2", "u-3", "u-4"}, visibleValues(s))
}

func TestSetQuery_SameQueryTwiceIsStable(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	s.SetQuery("al")
	first := visibleValues(s)
	s.SetQuery("al")

	assert.Equal(t, first, visibleValues(s))
}

func TestSetQuery_NoMatches(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	s.SetQuery("zzz")

	assert.Equal(t, 0, s.VisibleLen())
	assert.Empty(t, s.Visible())
}

func TestToggle_MultiAccumulatesWithoutEmitting(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	emitted, emit := s.Toggle("u-2")
	require.False(t, emit)
	require.Nil(t, emitted)

	_, emit = s.Toggle("u-1")
	require.False(t, emit)

	assert.Equal(t, 2, s.SelectedCount())
	assert.True(t, s.IsSelected("u-1"))
	assert.True(t, s.IsSelected("u-2"))
}

func TestToggle_MultiSelfInverse(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	s.Toggle("u-2")
	s.Toggle("u-2")

	assert.Equal(t, 0, s.SelectedCount())
	assert.False(t, s.IsSelected("u-2"))
}

func TestToggle_SelectionSurvivesFilterChange(t *testing.T) {
	s := NewSelect(Multi, testOptions())
	s.Toggle("u-2")

	// Hide the selected option, then bring it back.
	s.SetQuery("alice")
	assert.True(t, s.IsSelected("u-2"))

	s.SetQuery("")
	assert.True(t, s.IsSelected("u-2"))
	assert.Equal(t, 1, s.SelectedCount())
}

func TestToggle_SingleEmitsEveryToggle(t *testing.T) {
	s := NewSelect(Single, testOptions())

	emitted, emit := s.Toggle("u-1")
	require.True(t, emit)
	require.Len(t, emitted, 1)
	assert.Equal(t, "u-1", emitted[0].Value)

	// Picking another option replaces the first.
	emitted, emit = s.Toggle("u-3")
	require.True(t, emit)
	require.Len(t, emitted, 1)
	assert.Equal(t, "u-3", emitted[0].Value)
	assert.False(t, s.IsSelected("u-1"))

	// Toggling the selected option off emits an empty selection.
	emitted, emit = s.Toggle("u-3")
	require.True(t, emit)
	assert.Empty(t, emitted)
	assert.Equal(t, 0, s.SelectedCount())
}

func TestSelection_FullSetOrderRegardlessOfToggleOrder(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	s.Toggle("u-3")
	s.Toggle("u-1")

	sel := s.Selection()
	require.Len(t, sel, 2)
	assert.Equal(t, "u-1", sel[0].Value)
	assert.Equal(t, "u-3", sel[1].Value)
}

func TestSubmit_EmitsOrderedSelection(t *testing.T) {
	s := NewSelect(Multi, testOptions())
	s.Toggle("u-4")
	s.Toggle("u-2")

	emitted, emit := s.Submit()
	require.True(t, emit)
	require.Len(t, emitted, 2)
	assert.Equal(t, "u-2", emitted[0].Value)
	assert.Equal(t, "u-4", emitted[1].Value)
}

func TestSubmit_DoesNotClearSelection(t *testing.T) {
	s := NewSelect(Multi, testOptions())
	s.Toggle("u-2")

	_, emit := s.Submit()
	require.True(t, emit)

	assert.Equal(t, 1, s.SelectedCount())
	assert.True(t, s.CanSubmit())

	// A second submit emits the same selection again.
	emitted, emit := s.Submit()
	require.True(t, emit)
	require.Len(t, emitted, 1)
	assert.Equal(t, "u-2", emitted[0].Value)
}

func TestSubmit_EmptySelectionIsNoOp(t *testing.T) {
	s := NewSelect(Multi, testOptions())

	emitted, emit := s.Submit()

	assert.False(t, emit)
	assert.Nil(t, emitted)
	assert.False(t, s.CanSubmit())
}

func TestSubmit_SingleModeIsNoOp(t *testing.T) {
	s := NewSelect(Single, testOptions())
	s.Toggle("u-1")

	_, emit := s.Submit()

	assert.False(t, emit)
	assert.False(t, s.CanSubmit())
}
