package onboarding

import (
	"fmt"
	"slices"

	"github.com/kdimtricp/anilights/internal/models"
	"github.com/kdimtricp/anilights/internal/sampling"
	"github.com/kdimtricp/anilights/internal/taste"
)

// DefaultDisplaySize is how many options each round shows.
const DefaultDisplaySize = 5

// Session walks one user through the category rounds. It is owned by a
// single caller and has no locking of its own.
//
// Invariant: len(picks) == step and 0 <= step <= N, where step == N means complete.
type Session struct {
	classification *taste.Classification
	sampler        *sampling.Sampler
	displaySize    int

	step    int
	picks   []int
	display map[int][]models.CatalogItem
}

func NewSession(classification *taste.Classification, sampler *sampling.Sampler, displaySize int) *Session {
	if displaySize <= 0 {
		displaySize = DefaultDisplaySize
	}
	return &Session{
		classification: classification,
		sampler:        sampler,
		displaySize:    displaySize,
		picks:          []int{},
		display:        make(map[int][]models.CatalogItem),
	}
}

// Total is N, the number of rounds.
func (s *Session) Total() int {
	return len(s.classification.Categories())
}

func (s *Session) Step() int {
	return s.step
}

func (s *Session) Complete() bool {
	return s.step == s.Total()
}

// Category is the category of the current round; ok is false once complete.
func (s *Session) Category() (cat taste.Category, ok bool) {
	if s.Complete() {
		return "", false
	}
	return s.classification.Categories()[s.step], true
}

// Picks returns a copy of the ids chosen so far, in round order.
func (s *Session) Picks() []int {
	return slices.Clone(s.picks)
}

// Cached reports whether a display set is currently held for step.
func (s *Session) Cached(step int) bool {
	_, ok := s.display[step]
	return ok
}

// Options returns the display set of the current round, sampling it on first
// entry. Later calls return the same set until the round is invalidated.
func (s *Session) Options() ([]models.CatalogItem, error) {
	if s.Complete() {
		return nil, fmt.Errorf("%w: session is complete", ErrInvalidTransition)
	}
	return slices.Clone(s.enter()), nil
}

func (s *Session) enter() []models.CatalogItem {
	if set, ok := s.display[s.step]; ok {
		return set
	}
	cat := s.classification.Categories()[s.step]
	set := s.sampler.Sample(s.classification.Items(cat), s.displaySize)
	s.display[s.step] = set
	return set
}

// Pick records id for the current round and advances. complete is true when
// this was the last round.
func (s *Session) Pick(id int) (complete bool, err error) {
	if s.Complete() {
		return false, fmt.Errorf("%w: session is complete", ErrInvalidTransition)
	}

	set := s.enter()
	if !slices.ContainsFunc(set, func(it models.CatalogItem) bool { return it.ID == id }) {
		return false, fmt.Errorf("%w: item %d is not offered at step %d", ErrInvalidSelection, id, s.step)
	}

	s.picks = append(s.picks, id)
	s.step++
	return s.Complete(), nil
}

// Back undoes the last pick. The display set of the round being returned to
// is dropped, so it is sampled afresh.
func (s *Session) Back() error {
	if s.Complete() {
		return fmt.Errorf("%w: session is complete", ErrInvalidTransition)
	}
	if s.step == 0 {
		return fmt.Errorf("%w: already at the first step", ErrInvalidTransition)
	}
	s.truncate(s.step - 1)
	return nil
}

// JumpTo returns to an earlier round k, discarding picks and display sets from k on.
func (s *Session) JumpTo(k int) error {
	if s.Complete() {
		return fmt.Errorf("%w: session is complete", ErrInvalidTransition)
	}
	if k < 0 || k >= s.step {
		return fmt.Errorf("%w: cannot jump to step %d from step %d", ErrInvalidTransition, k, s.step)
	}
	s.truncate(k)
	return nil
}

// Reset returns to the first round with nothing picked and nothing cached.
func (s *Session) Reset() {
	s.step = 0
	s.picks = s.picks[:0]
	clear(s.display)
}

// Reopen takes a complete session back to its last round so the final pick
// can be made again. It is the rollback used when the handoff fails.
func (s *Session) Reopen() error {
	if !s.Complete() {
		return fmt.Errorf("%w: session is not complete", ErrInvalidTransition)
	}
	s.truncate(s.step - 1)
	return nil
}

func (s *Session) truncate(k int) {
	for i := k; i <= s.step; i++ {
		delete(s.display, i)
	}
	s.picks = s.picks[:k]
	s.step = k
}
