package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

const (
	DefaultGroup    = "default"
	DefaultPageSize = 5
)

var (
	latKeys     = []string{"lat", "latitude", "Lat", "Latitude"}
	lngKeys     = []string{"lng", "longitude", "Lng", "Longitude", "lon", "long"}
	nameKeys    = []string{"name", "title", "Title", "opportunity", "program", "organization"}
	linkKeys    = []string{"link", "url", "website", "href"}
	idKeys      = []string{"id", "ID"}
	countryKeys = []string{"country", "Country", "location_country"}
)

// Normalize converts raw dataset entries into opportunities. Entries without
// a finite coordinate pair are dropped and logged. Input order is kept.
func Normalize(logger *log.Logger, group string, raw []map[string]any) []types.Opportunity {
	out := make([]types.Opportunity, 0, len(raw))

	for i, entry := range raw {
		lat, lng, ok := coordinates(entry)
		if !ok {
			if logger != nil {
				logger.Printf("dropping opportunity %d in group %q: no valid coordinates", i, group)
			}
			continue
		}

		o := types.Opportunity{
			Id:      firstString(entry, idKeys),
			Lat:     lat,
			Lng:     lng,
			Name:    firstString(entry, nameKeys),
			Link:    firstString(entry, linkKeys),
			Country: firstString(entry, countryKeys),
		}
		if o.Id == "" {
			o.Id = fmt.Sprintf("%s-%d", group, i)
		}
		if o.Name == "" {
			o.Name = fmt.Sprintf("Opportunity %d", i+1)
		}
		if o.Country == "" && group != DefaultGroup {
			o.Country = group
		}

		out = append(out, o)
	}

	return out
}

func coordinates(entry map[string]any) (float64, float64, bool) {
	lat, latOk := firstNumber(entry, latKeys)
	lng, lngOk := firstNumber(entry, lngKeys)
	if latOk && lngOk {
		return lat, lng, true
	}

	if pair, ok := entry["coordinates"].([]any); ok && len(pair) == 2 {
		lat, latOk = toNumber(pair[0])
		lng, lngOk = toNumber(pair[1])
		if latOk && lngOk {
			return lat, lng, true
		}
	}

	if loc, ok := entry["location"].(map[string]any); ok {
		lat, latOk = firstNumber(loc, latKeys)
		lng, lngOk = firstNumber(loc, lngKeys)
		if latOk && lngOk {
			return lat, lng, true
		}
	}

	return 0, 0, false
}

func firstNumber(entry map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := entry[k]; ok {
			if n, ok := toNumber(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func firstString(entry map[string]any, keys []string) string {
	for _, k := range keys {
		switch t := entry[k].(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

// Catalog is the static opportunity dataset, grouped by country key plus the
// default group. Groups are not mutated after load.
type Catalog struct {
	groups map[string][]types.Opportunity
	keys   []string
}

func NewCatalog(groups map[string][]types.Opportunity) *Catalog {
	c := &Catalog{groups: groups}
	for k := range groups {
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)
	return c
}

// LoadCatalog reads a JSON object mapping group keys to lists of raw entries.
func LoadCatalog(logger *log.Logger, r io.Reader) (*Catalog, error) {
	var raw map[string][]map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode opportunities: %w", err)
	}

	groups := make(map[string][]types.Opportunity, len(raw))
	for group, entries := range raw {
		groups[group] = Normalize(logger, group, entries)
	}

	return NewCatalog(groups), nil
}

// Default returns the unfiltered group. Without a default group every entry
// is returned.
func (c *Catalog) Default() []types.Opportunity {
	if d, ok := c.groups[DefaultGroup]; ok {
		return d
	}
	return c.All()
}

// All returns every opportunity once, groups in key order.
func (c *Catalog) All() []types.Opportunity {
	seen := make(map[string]bool)
	var out []types.Opportunity
	for _, k := range c.keys {
		for _, o := range c.groups[k] {
			if seen[o.Id] {
				continue
			}
			seen[o.Id] = true
			out = append(out, o)
		}
	}
	return out
}

// FilterByCountry returns the default group when country is empty, otherwise
// every opportunity whose country matches.
func (c *Catalog) FilterByCountry(country string) []types.Opportunity {
	if strings.TrimSpace(country) == "" {
		return c.Default()
	}

	var out []types.Opportunity
	for _, o := range c.All() {
		if MatchCountry(o.Country, country) {
			out = append(out, o)
		}
	}
	return out
}

// Lookup finds the opportunity at the given coordinates.
func (c *Catalog) Lookup(lat, lng float64) (types.Opportunity, bool) {
	const eps = 1e-6
	for _, o := range c.All() {
		if math.Abs(o.Lat-lat) < eps && math.Abs(o.Lng-lng) < eps {
			return o, true
		}
	}
	return types.Opportunity{}, false
}

// NameAt returns the name of the opportunity at the coordinates or "".
func (c *Catalog) NameAt(lat, lng float64) string {
	if o, ok := c.Lookup(lat, lng); ok {
		return o.Name
	}
	return ""
}

// Rank reorders base by position in rankedIds. Entries missing from
// rankedIds follow all ranked entries in their original order.
func Rank(base []types.Opportunity, rankedIds []string) []types.Opportunity {
	out := make([]types.Opportunity, len(base))
	copy(out, base)
	if len(rankedIds) == 0 {
		return out
	}

	pos := make(map[string]int, len(rankedIds))
	for i, id := range rankedIds {
		if _, dup := pos[id]; !dup {
			pos[id] = i
		}
	}

	rank := func(o types.Opportunity) int {
		if i, ok := pos[o.Id]; ok {
			return i
		}
		return len(rankedIds)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) < rank(out[j])
	})
	return out
}

type Page struct {
	Items  []types.Opportunity `json:"items"`
	Number int                 `json:"number"`
	Total  int                 `json:"total"`
}

// Paginate returns the 1-indexed page of list, clamping page into range. An
// empty list yields page 1 of 1.
func Paginate(list []types.Opportunity, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}

	total := (len(list) + size - 1) / size
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * size
	end := start + size
	if start > len(list) {
		start = len(list)
	}
	if end > len(list) {
		end = len(list)
	}

	items := make([]types.Opportunity, end-start)
	copy(items, list[start:end])

	return Page{Items: items, Number: page, Total: total}
}

// CatalogView is the filtered, ranked and paginated state shown to one
// participant. onChange fires only when the visible page differs from the
// last one reported.
type CatalogView struct {
	catalog   *Catalog
	mu        sync.Mutex
	country   string
	filtered  []types.Opportunity
	rankedIds []string
	page      int
	visible   Page
	lastJSON  []byte
	onChange  func(Page)
}

func NewCatalogView(catalog *Catalog, onChange func(Page)) *CatalogView {
	v := &CatalogView{
		catalog:  catalog,
		page:     1,
		onChange: onChange,
	}
	v.filtered = catalog.Default()
	v.visible = Paginate(v.filtered, 1, DefaultPageSize)
	v.lastJSON, _ = json.Marshal(v.visible)
	return v
}

// SetCountry re-filters for country. An empty country selects the default
// group. The page resets to 1 when the filtered list changes.
func (v *CatalogView) SetCountry(country string) {
	v.update(func() {
		next := v.catalog.FilterByCountry(country)
		if country != v.country || !sameIds(v.filtered, next) {
			v.country = country
			v.filtered = next
			v.page = 1
			v.rankedIds = nil
		}
	})
}

func (v *CatalogView) SetPage(page int) {
	v.update(func() {
		v.page = page
	})
}

func (v *CatalogView) NextPage() {
	v.update(func() {
		v.page++
	})
}

func (v *CatalogView) PrevPage() {
	v.update(func() {
		v.page--
	})
}

// SetRanking applies a ranked id order to the visible page.
func (v *CatalogView) SetRanking(rankedIds []string) {
	v.update(func() {
		v.rankedIds = rankedIds
	})
}

func (v *CatalogView) Country() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.country
}

func (v *CatalogView) Visible() Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Unranked returns the current page in catalog order.
func (v *CatalogView) Unranked() Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Paginate(v.filtered, v.page, DefaultPageSize)
}

func (v *CatalogView) update(mutate func()) {
	v.mu.Lock()
	mutate()

	page := Paginate(v.filtered, v.page, DefaultPageSize)
	v.page = page.Number
	page.Items = Rank(page.Items, v.rankedIds)
	v.visible = page

	encoded, err := json.Marshal(page)
	if err == nil && bytes.Equal(encoded, v.lastJSON) {
		v.mu.Unlock()
		return
	}
	v.lastJSON = encoded
	onChange := v.onChange
	v.mu.Unlock()

	if onChange != nil {
		onChange(page)
	}
}

func sameIds(a, b []types.Opportunity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Id != b[i].Id {
			return false
		}
	}
	return true
}
