package plants

import (
	"iter"
	"slices"
)

const selectionSize = 2

// Selection holds the photos picked for a before/after comparison. It keeps at
// most two identifiers; picking a third evicts the oldest pick.
type Selection struct {
	ids []string
}

// Toggle removes id if it is selected and adds it otherwise.
func (s *Selection) Toggle(id string) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return
	}
	if len(s.ids) >= selectionSize {
		s.ids = s.ids[1:]
	}
	s.ids = append(slices.Clip(s.ids), id)
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id string) bool {
	return slices.Contains(s.ids, id)
}

// Ids returns the selected identifiers in pick order.
func (s *Selection) Ids() []string {
	return slices.Clone(s.ids)
}

// Len returns the number of selected photos, at most 2.
func (s *Selection) Len() int {
	return len(s.ids)
}

// Reset empties the selection.
func (s *Selection) Reset() {
	s.ids = nil
}

// Compare returns the selected photos of a timeline, oldest first, whatever
// order they were picked in.
func Compare(timeline iter.Seq[Photo], s *Selection) []Photo {
	var picked []Photo
	for photo := range timeline {
		if s.Contains(photo.Id) {
			picked = append(picked, photo)
		}
	}
	sortByDate(picked)
	return picked
}
