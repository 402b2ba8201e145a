// Package selection implements the selection model for an annotated
// antibody dataset: the set of selected regions, the set of selected
// residue positions, and the queries that turn those sets into something
// renderable (colors, compacted range labels).
package selection

import (
	"fmt"
	"sort"

	"github.com/maquino1985/abseq/internal/antibody"
)

// Model holds the selection state for one dataset.  It is not safe for
// concurrent use; callers hosting it in a shared store must serialize
// access (see the session package).
type Model struct {
	dataset *antibody.Dataset

	regions   map[string]bool
	positions map[int]bool

	// manual tracks positions toggled directly, as opposed to positions
	// swept in by a region toggle.  It feeds DerivedPositions and the
	// outline emphasis; the primary positions set is mutated incrementally.
	manual map[int]bool
}

// NewModel returns an empty selection over the given dataset.
func NewModel(dataset *antibody.Dataset) *Model {
	return &Model{
		dataset:   dataset,
		regions:   make(map[string]bool),
		positions: make(map[int]bool),
		manual:    make(map[int]bool),
	}
}

// Dataset returns the dataset this selection was created over.
func (m *Model) Dataset() *antibody.Dataset {
	return m.dataset
}

// ToggleRegion flips the selected state of the region with the given ID.
// Selecting a region adds every position in its interval to the position
// set; deselecting removes every position in its interval unconditionally,
// even if another selected region overlaps it.  Unknown IDs still toggle
// in the region set but have no position effect.
func (m *Model) ToggleRegion(id string) {
	selected := m.regions[id]
	if selected {
		delete(m.regions, id)
	} else {
		m.regions[id] = true
	}

	region := m.dataset.Region(id)
	if region == nil {
		return
	}
	for pos := region.Start; pos <= region.Stop; pos++ {
		if selected {
			delete(m.positions, pos)
		} else {
			m.positions[pos] = true
		}
	}
}

// TogglePosition flips membership of a single 1-based position.  It never
// affects the selected region set.
func (m *Model) TogglePosition(pos int) {
	if m.positions[pos] {
		delete(m.positions, pos)
		delete(m.manual, pos)
	} else {
		m.positions[pos] = true
		m.manual[pos] = true
	}
}

// Clear empties both sets unconditionally.
func (m *Model) Clear() {
	m.regions = make(map[string]bool)
	m.positions = make(map[int]bool)
	m.manual = make(map[int]bool)
}

// RegionSelected reports whether the region with the given ID is selected.
func (m *Model) RegionSelected(id string) bool {
	return m.regions[id]
}

// PositionSelected reports whether the position is selected.
func (m *Model) PositionSelected(pos int) bool {
	return m.positions[pos]
}

// ManuallyToggled reports whether the position was toggled directly, as
// opposed to swept in by a region toggle.
func (m *Model) ManuallyToggled(pos int) bool {
	return m.manual[pos]
}

// SelectedRegions returns the selected region IDs in sorted order.
func (m *Model) SelectedRegions() []string {
	ids := make([]string, 0, len(m.regions))
	for id := range m.regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SelectedPositions returns the selected positions in ascending order.
func (m *Model) SelectedPositions() []int {
	positions := make([]int, 0, len(m.positions))
	for pos := range m.positions {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	return positions
}

// DerivedPositions recomputes the selected position set from first
// principles: the union of every selected region's interval plus every
// directly toggled position.  Unlike the incrementally maintained set it
// cannot drift when overlapping regions are deselected.
func (m *Model) DerivedPositions() []int {
	derived := make(map[int]bool, len(m.positions))
	for id := range m.regions {
		region := m.dataset.Region(id)
		if region == nil {
			continue
		}
		for pos := region.Start; pos <= region.Stop; pos++ {
			derived[pos] = true
		}
	}
	for pos := range m.manual {
		derived[pos] = true
	}
	positions := make([]int, 0, len(derived))
	for pos := range derived {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	return positions
}

// FormatSelections compacts the current selection over one chain into
// display labels: one "Name:Start-Stop" label per selected region in
// chain order, followed by the remaining individually selected positions
// collapsed into maximal consecutive runs ("E5" or "E5-G9").  Display
// truncation is the caller's concern.
func (m *Model) FormatSelections(chain *antibody.Chain) []string {
	var labels []string

	covered := make(map[int]bool)
	for i := range chain.Regions {
		region := &chain.Regions[i]
		if !m.regions[region.ID] {
			continue
		}
		labels = append(labels, region.String())
		for pos := region.Start; pos <= region.Stop; pos++ {
			covered[pos] = true
		}
	}

	var individual []int
	for pos := range m.positions {
		if !covered[pos] {
			individual = append(individual, pos)
		}
	}
	sort.Ints(individual)

	for start := 0; start < len(individual); {
		end := start
		for end+1 < len(individual) && individual[end+1] == individual[end]+1 {
			end++
		}
		labels = append(labels, formatRun(chain, individual[start], individual[end]))
		start = end + 1
	}
	return labels
}

// formatRun renders one run of consecutive positions using 1-based residue
// lookups.  Positions beyond the chain are rendered with a '?' residue
// rather than dropped, so stale selections remain visible.
func formatRun(chain *antibody.Chain, first, last int) string {
	if first == last {
		return fmt.Sprintf("%c%d", residueOrPlaceholder(chain, first), first)
	}
	return fmt.Sprintf("%c%d-%c%d",
		residueOrPlaceholder(chain, first), first,
		residueOrPlaceholder(chain, last), last)
}

func residueOrPlaceholder(chain *antibody.Chain, pos int) byte {
	if r, ok := chain.Residue(pos); ok {
		return r
	}
	return '?'
}
