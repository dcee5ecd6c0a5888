package planner

import (
	"log"
	"sync"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

type Effect int

const (
	// EffectCamera re-frames the globe on the new focus.
	EffectCamera Effect = iota + 1
	// EffectIdleReset restarts the idle auto-rotation timer.
	EffectIdleReset
	// EffectCatalogFilter re-filters the opportunity list by country.
	EffectCatalogFilter
)

// SelectionStore holds the focus derived from the latest room snapshot.
type SelectionStore struct {
	log      *log.Logger
	mu       sync.Mutex
	last     *types.Room
	focus    Focus
	nameOf   func(lat, lng float64) string
	onChange func(Focus, []Effect)
}

func NewSelectionStore(logger *log.Logger, nameOf func(lat, lng float64) string, onChange func(Focus, []Effect)) *SelectionStore {
	return &SelectionStore{
		log:      logger,
		focus:    NoFocus(),
		nameOf:   nameOf,
		onChange: onChange,
	}
}

// Apply folds a remote room row into the store. Rows older than the last
// applied one are ignored, so push and poll deliveries converge regardless of
// arrival order. Effects are dispatched only for fields that changed; the
// returned slice is empty when nothing did.
func (s *SelectionStore) Apply(room types.Room) []Effect {
	s.mu.Lock()

	if s.last != nil && room.UpdatedAt.Before(s.last.UpdatedAt) {
		s.mu.Unlock()
		return nil
	}

	if room.SelectedCountry != nil && room.SelectedOpportunityLat != nil {
		s.log.Printf("room %q has both a country and an opportunity selected", room.Code)
	}

	var countryChanged, opportunityChanged bool
	if s.last == nil {
		countryChanged, opportunityChanged = true, true
	} else {
		countryChanged = !types.EqualString(s.last.SelectedCountry, room.SelectedCountry)
		opportunityChanged = !types.EqualFloat(s.last.SelectedOpportunityLat, room.SelectedOpportunityLat) ||
			!types.EqualFloat(s.last.SelectedOpportunityLng, room.SelectedOpportunityLng)
	}

	snapshot := room
	s.last = &snapshot
	s.focus = FocusFromRoom(room, s.nameOf)

	var effects []Effect
	if countryChanged || opportunityChanged {
		effects = append(effects, EffectCamera, EffectIdleReset)
	}
	if countryChanged {
		effects = append(effects, EffectCatalogFilter)
	}

	focus, onChange := s.focus, s.onChange
	s.mu.Unlock()

	if len(effects) > 0 && onChange != nil {
		onChange(focus, effects)
	}

	return effects
}

func (s *SelectionStore) Focus() Focus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// Room returns the last applied row.
func (s *SelectionStore) Room() (types.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return types.Room{}, false
	}
	return *s.last, true
}
