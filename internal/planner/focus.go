package planner

import (
	"fmt"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

type FocusKind int

const (
	FocusNone FocusKind = iota
	FocusCountry
	FocusOpportunity
)

func (k FocusKind) String() string {
	switch k {
	case FocusCountry:
		return "country"
	case FocusOpportunity:
		return "opportunity"
	default:
		return "none"
	}
}

// Focus is what the globe is centred on. Only the fields belonging to Kind
// are meaningful.
type Focus struct {
	Kind    FocusKind
	Country string
	Lat     float64
	Lng     float64
	Name    string
}

func NoFocus() Focus {
	return Focus{Kind: FocusNone}
}

func CountryFocus(name string) Focus {
	return Focus{Kind: FocusCountry, Country: name}
}

func OpportunityFocus(lat, lng float64, name string) Focus {
	return Focus{Kind: FocusOpportunity, Lat: lat, Lng: lng, Name: name}
}

func (f Focus) String() string {
	switch f.Kind {
	case FocusCountry:
		return fmt.Sprintf("country(%s)", f.Country)
	case FocusOpportunity:
		return fmt.Sprintf("opportunity(%s @ %.4f,%.4f)", f.Name, f.Lat, f.Lng)
	default:
		return "idle"
	}
}

// FocusFromRoom derives the focus from a room row. nameOf resolves the
// display name of the opportunity at the selected coordinates and may be nil.
// A row carrying both a country and coordinates violates the room invariant;
// the coordinates win since an opportunity is always picked after a country.
func FocusFromRoom(room types.Room, nameOf func(lat, lng float64) string) Focus {
	if room.SelectedOpportunityLat != nil && room.SelectedOpportunityLng != nil {
		lat, lng := *room.SelectedOpportunityLat, *room.SelectedOpportunityLng
		name := defaultFocusName
		if nameOf != nil {
			if n := nameOf(lat, lng); n != "" {
				name = n
			}
		}
		return OpportunityFocus(lat, lng, name)
	}

	if room.SelectedCountry != nil && *room.SelectedCountry != "" {
		return CountryFocus(*room.SelectedCountry)
	}

	return NoFocus()
}

const defaultFocusName = "Selected opportunity"

// ClickCountry returns the focus that follows a click on a country polygon.
// Clicking the focused country toggles back to idle. Countries missing from
// the allow-list leave the focus untouched and report false.
func (f Focus) ClickCountry(name string) (Focus, bool) {
	if !IsEligibleCountry(name) {
		return f, false
	}

	if f.Kind == FocusCountry && normalizeCountry(f.Country) == normalizeCountry(name) {
		return NoFocus(), true
	}

	return CountryFocus(name), true
}

// SelectOpportunity replaces any focus with the opportunity.
func (f Focus) SelectOpportunity(o types.Opportunity) Focus {
	return OpportunityFocus(o.Lat, o.Lng, o.Name)
}

// Back leaves an opportunity focus. Other foci are unchanged.
func (f Focus) Back() Focus {
	if f.Kind == FocusOpportunity {
		return NoFocus()
	}
	return f
}

// Selection is the room write that realises f. Every write carries all three
// columns so observers never see a country and coordinates together.
func (f Focus) Selection(roomCode string) types.Selection {
	sel := types.Selection{RoomCode: roomCode}
	switch f.Kind {
	case FocusCountry:
		country := f.Country
		sel.SelectedCountry = &country
	case FocusOpportunity:
		lat, lng := f.Lat, f.Lng
		sel.SelectedOpportunityLat = &lat
		sel.SelectedOpportunityLng = &lng
	}
	return sel
}
