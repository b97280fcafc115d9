package usecase

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

// Selector tracks which findings of one analyzed document are chosen for redaction.
// It is not safe for concurrent use.
type Selector struct {
	count    int
	selected map[int]struct{}
	locked   bool
}

func NewSelector(doc domain.Document) (*Selector, error) {
	if doc.Status != domain.StatusAnalyzed {
		return nil, domain.WrapError(
			domain.ErrInvalidTransition,
			"select findings",
			fmt.Errorf("document %s is %q, selection requires %q", doc.ID, doc.Status, domain.StatusAnalyzed),
		)
	}
	return &Selector{count: len(doc.Findings), selected: make(map[int]struct{})}, nil
}

// Toggle adds index to the selection, or removes it when already selected.
func (s *Selector) Toggle(index int) error {
	if s.locked {
		return domain.WrapError(domain.ErrInvalidTransition, "toggle finding", errors.New("redaction in progress"))
	}
	if index < 0 || index >= s.count {
		return domain.WrapError(
			domain.ErrInvalidSelection,
			"toggle finding",
			fmt.Errorf("index %d out of range [0,%d)", index, s.count),
		)
	}
	if _, ok := s.selected[index]; ok {
		delete(s.selected, index)
		return nil
	}
	s.selected[index] = struct{}{}
	return nil
}

// Selection returns the selected indices in ascending order.
func (s *Selector) Selection() []int {
	out := make([]int, 0, len(s.selected))
	for idx := range s.selected {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (s *Selector) Len() int {
	return len(s.selected)
}

// Lock freezes the selection while a redaction is applied.
func (s *Selector) Lock() {
	s.locked = true
}

func (s *Selector) Unlock() {
	s.locked = false
}
