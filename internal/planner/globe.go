package planner

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/npezzotti/go-tripplanner/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

const (
	OverviewAltitude = 2.5
	CountryAltitude  = 1.2
	PointAltitude    = 0.4

	overviewLat = 20.0
	overviewLng = 0.0
)

var countryNameProps = []string{"name", "NAME", "ADMIN", "admin", "name_long"}

// Countries holds the centroid of every polygon in a country boundary
// dataset, keyed by normalized country name.
type Countries struct {
	centroids map[string]orb.Point
}

// LoadCountries reads a GeoJSON FeatureCollection of country polygons.
// Features without a usable name or area are skipped.
func LoadCountries(r io.Reader) (*Countries, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read countries: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode countries: %w", err)
	}

	c := &Countries{centroids: make(map[string]orb.Point, len(fc.Features))}
	for _, f := range fc.Features {
		name := featureName(f)
		if name == "" || f.Geometry == nil {
			continue
		}

		centroid, area := planar.CentroidArea(f.Geometry)
		if area == 0 {
			continue
		}
		c.centroids[normalizeCountry(name)] = centroid
	}

	return c, nil
}

func featureName(f *geojson.Feature) string {
	for _, key := range countryNameProps {
		if s, ok := f.Properties[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Centroid returns the latitude and longitude at the centre of the named
// country, matching names the same way the catalog filter does.
func (c *Countries) Centroid(name string) (float64, float64, bool) {
	if c == nil {
		return 0, 0, false
	}

	if p, ok := c.centroids[normalizeCountry(name)]; ok {
		return p.Lat(), p.Lon(), true
	}

	for key, p := range c.centroids {
		if MatchCountry(key, name) {
			return p.Lat(), p.Lon(), true
		}
	}

	return 0, 0, false
}

func (c *Countries) Len() int {
	if c == nil {
		return 0
	}
	return len(c.centroids)
}

type Camera struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Altitude   float64 `json:"altitude"`
	AutoRotate bool    `json:"auto_rotate"`
}

func OverviewCamera() Camera {
	return Camera{Lat: overviewLat, Lng: overviewLng, Altitude: OverviewAltitude, AutoRotate: true}
}

// CameraMove is a single re-framing from one camera to the next. Moves between
// two focused states go straight to the target.
type CameraMove struct {
	From Camera `json:"from"`
	To   Camera `json:"to"`
}

type Marker struct {
	Id      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Focused bool    `json:"focused"`
}

type IntentKind int

const (
	IntentCountryClicked IntentKind = iota + 1
	IntentTileClicked
	IntentTileSelected
)

func (k IntentKind) String() string {
	switch k {
	case IntentCountryClicked:
		return "country-clicked"
	case IntentTileClicked:
		return "tile-clicked"
	case IntentTileSelected:
		return "tile-selected"
	default:
		return "unknown"
	}
}

// Intent is a user action on the globe or the opportunity tiles.
type Intent struct {
	Kind        IntentKind
	Country     string
	Opportunity types.Opportunity
}

// Globe derives camera and marker state from the focus and the visible page.
// It never writes room state itself; user actions leave as intents.
type Globe struct {
	log       *log.Logger
	countries *Countries
	onIntent  func(Intent)

	mu          sync.Mutex
	focus       Focus
	page        Page
	camera      Camera
	highlighted string
}

func NewGlobe(logger *log.Logger, countries *Countries, onIntent func(Intent)) *Globe {
	return &Globe{
		log:       logger,
		countries: countries,
		onIntent:  onIntent,
		focus:     NoFocus(),
		camera:    OverviewCamera(),
	}
}

// CameraFor frames focus. Point framing is always closer than country
// framing.
func CameraFor(focus Focus, countries *Countries) Camera {
	switch focus.Kind {
	case FocusCountry:
		lat, lng, ok := countries.Centroid(focus.Country)
		if !ok {
			lat, lng = overviewLat, overviewLng
		}
		return Camera{Lat: lat, Lng: lng, Altitude: CountryAltitude}
	case FocusOpportunity:
		return Camera{Lat: focus.Lat, Lng: focus.Lng, Altitude: PointAltitude}
	default:
		return OverviewCamera()
	}
}

// MarkersFor returns the single focused marker when an opportunity is
// focused and the page markers otherwise.
func MarkersFor(focus Focus, page Page) []Marker {
	if focus.Kind == FocusOpportunity {
		return []Marker{{
			Name:    focus.Name,
			Lat:     focus.Lat,
			Lng:     focus.Lng,
			Focused: true,
		}}
	}

	markers := make([]Marker, 0, len(page.Items))
	for _, o := range page.Items {
		markers = append(markers, Marker{Id: o.Id, Name: o.Name, Lat: o.Lat, Lng: o.Lng})
	}
	return markers
}

// SetFocus re-frames the camera for focus and returns the move.
func (g *Globe) SetFocus(focus Focus) CameraMove {
	g.mu.Lock()
	defer g.mu.Unlock()

	if focus.Kind == FocusCountry {
		if _, _, ok := g.countries.Centroid(focus.Country); !ok && g.log != nil {
			g.log.Printf("no centroid for %q, framing overview position", focus.Country)
		}
	}

	move := CameraMove{From: g.camera, To: CameraFor(focus, g.countries)}
	g.focus = focus
	g.camera = move.To
	if focus.Kind != FocusNone {
		g.highlighted = ""
	}
	return move
}

func (g *Globe) SetPage(page Page) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.page = page
}

func (g *Globe) Camera() Camera {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.camera
}

func (g *Globe) Markers() []Marker {
	g.mu.Lock()
	defer g.mu.Unlock()
	return MarkersFor(g.focus, g.page)
}

// Highlighted returns the id of the tile last clicked but not yet selected.
func (g *Globe) Highlighted() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.highlighted
}

// ClickCountry emits a country intent for eligible countries. Other polygons
// are ignored.
func (g *Globe) ClickCountry(name string) bool {
	if !IsEligibleCountry(name) {
		return false
	}
	g.emit(Intent{Kind: IntentCountryClicked, Country: name})
	return true
}

func (g *Globe) ClickTile(o types.Opportunity) {
	g.mu.Lock()
	g.highlighted = o.Id
	g.mu.Unlock()

	g.emit(Intent{Kind: IntentTileClicked, Opportunity: o})
}

func (g *Globe) SelectTile(o types.Opportunity) {
	g.emit(Intent{Kind: IntentTileSelected, Opportunity: o})
}

func (g *Globe) emit(intent Intent) {
	if g.onIntent != nil {
		g.onIntent(intent)
	}
}
