package planner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/npezzotti/go-tripplanner/internal/testutil"
	"github.com/npezzotti/go-tripplanner/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCountry(t *testing.T) {
	tcs := []struct {
		country  string
		selected string
		expect   bool
	}{
		{"United States", "usa", true},
		{"United Kingdom", "uk", true},
		{"France", "francesomething", true},
		{"UK", "us", false},
		{"  JAPAN ", "japan", true},
		{"Korea", "South Korea", true},
		{"Peru", "Peruvia", false},
		{"Niger", "Nigeria", true},
		{"", "Japan", false},
		{"Japan", "", false},
	}

	for _, tc := range tcs {
		t.Run(fmt.Sprintf("%s/%s", tc.country, tc.selected), func(t *testing.T) {
			assert.Equal(t, tc.expect, MatchCountry(tc.country, tc.selected))
		})
	}
}

func TestSynonymGroups(t *testing.T) {
	tcs := []struct {
		country  string
		selected string
	}{
		{"United States of America", "U.S.A."},
		{"England", "Great Britain"},
		{"Korea, Republic of", "South Korea"},
		{"DPRK", "North Korea"},
		{"Côte d'Ivoire", "Ivory Coast"},
		{"Dem. Rep. Congo", "DRC"},
		{"Congo (Brazzaville)", "Republic of the Congo"},
		{"Burma", "Myanmar"},
		{"Türkiye", "Turkey"},
		{"Holland", "Netherlands"},
		{"East Timor", "Timor-Leste"},
		{"Republic of Moldova", "Moldova"},
	}

	for _, tc := range tcs {
		t.Run(tc.country, func(t *testing.T) {
			assert.True(t, MatchCountry(tc.country, tc.selected))
		})
	}

	for i, group := range synonymGroups {
		for _, name := range group {
			assert.Equal(t, i, synonymIndex[normalizeCountry(name)], "%q is listed in more than one group", name)
		}
	}

	assert.False(t, MatchCountry("DPRK", "Korea"), "expected the two Koreas to stay apart")
}

func TestNormalize(t *testing.T) {
	raw := []map[string]any{
		{"lat": 35.6897, "lng": 139.6997, "name": "Shinjuku Program", "url": "https://example.org/a"},
		{"latitude": "34.69", "longitude": "135.50", "title": "Osaka Food Bank", "ID": "osaka"},
		{"coordinates": []any{43.06, 141.35}, "organization": "Sapporo Snow Crew", "country": "Japan"},
		{"location": map[string]any{"lat": 26.21, "lng": 127.68}},
		{"Lat": 33.59, "lon": 130.40, "program": "Fukuoka Harbour"},
		{"name": "no coordinates"},
		{"lat": "north", "lng": 10.0},
		{"lat": 10.0},
	}

	got := Normalize(testutil.TestLogger(t), "Japan", raw)
	require.Len(t, got, 5)

	assert.Equal(t, types.Opportunity{
		Id: "Japan-0", Lat: 35.6897, Lng: 139.6997, Name: "Shinjuku Program",
		Link: "https://example.org/a", Country: "Japan",
	}, got[0])
	assert.Equal(t, "osaka", got[1].Id)
	assert.Equal(t, "Osaka Food Bank", got[1].Name)
	assert.Equal(t, 34.69, got[1].Lat)
	assert.Equal(t, "Sapporo Snow Crew", got[2].Name)
	assert.Equal(t, 43.06, got[2].Lat)
	assert.Equal(t, "Opportunity 4", got[3].Name)
	assert.Equal(t, 127.68, got[3].Lng)
	assert.Equal(t, "Fukuoka Harbour", got[4].Name)
	assert.Equal(t, "Japan-4", got[4].Id)
}

func TestNormalizeDefaultGroupLeavesCountryEmpty(t *testing.T) {
	got := Normalize(nil, DefaultGroup, []map[string]any{{"lat": 1.0, "lng": 2.0}})
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].Country)
	assert.Equal(t, "default-0", got[0].Id)
}

const testDataset = `{
	"default": [
		{"id": "d1", "lat": 1, "lng": 1, "name": "Anywhere 1"},
		{"id": "d2", "lat": 2, "lng": 2, "name": "Anywhere 2"},
		{"id": "d3", "lat": 3, "lng": 3, "name": "Anywhere 3"},
		{"id": "d4", "lat": 4, "lng": 4, "name": "Anywhere 4"},
		{"id": "d5", "lat": 5, "lng": 5, "name": "Anywhere 5"},
		{"id": "d6", "lat": 6, "lng": 6, "name": "Anywhere 6"},
		{"id": "d7", "lat": 7, "lng": 7, "name": "Anywhere 7"}
	],
	"Japan": [
		{"id": "j1", "lat": 35.6897, "lng": 139.6997, "name": "Shinjuku Program"},
		{"id": "j2", "lat": 34.69, "lng": 135.50, "name": "Osaka Food Bank"}
	],
	"usa": [
		{"id": "u1", "lat": 40.71, "lng": -74.0, "name": "Brooklyn Gardens"}
	]
}`

func testCatalog(t *testing.T) *Catalog {
	c, err := LoadCatalog(testutil.TestLogger(t), strings.NewReader(testDataset))
	require.NoError(t, err)
	return c
}

func TestCatalogFilterByCountry(t *testing.T) {
	c := testCatalog(t)

	assert.Len(t, c.FilterByCountry(""), 7)
	assert.Equal(t, []string{"j1", "j2"}, ids(c.FilterByCountry("Japan")))
	assert.Equal(t, []string{"u1"}, ids(c.FilterByCountry("United States")))
	assert.Empty(t, c.FilterByCountry("Peru"))
}

func TestCatalogLookup(t *testing.T) {
	c := testCatalog(t)

	o, ok := c.Lookup(35.6897, 139.6997)
	assert.True(t, ok)
	assert.Equal(t, "j1", o.Id)
	assert.Equal(t, "Shinjuku Program", c.NameAt(35.6897, 139.6997))
	assert.Equal(t, "", c.NameAt(0, 0))
}

func TestLoadCatalogInvalidJSON(t *testing.T) {
	_, err := LoadCatalog(nil, strings.NewReader("[1,2"))
	assert.Error(t, err)
}

func TestRank(t *testing.T) {
	base := opps("a", "b", "c", "d", "e")

	tcs := []struct {
		name   string
		ranked []string
		expect []string
	}{
		{"no ranking", nil, []string{"a", "b", "c", "d", "e"}},
		{"full ranking", []string{"e", "d", "c", "b", "a"}, []string{"e", "d", "c", "b", "a"}},
		{"partial ranking sinks absent", []string{"d", "b"}, []string{"d", "b", "a", "c", "e"}},
		{"unknown ids ignored", []string{"zz", "c"}, []string{"c", "a", "b", "d", "e"}},
		{"duplicate ids use first position", []string{"b", "a", "b"}, []string{"b", "a", "c", "d", "e"}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, ids(Rank(base, tc.ranked)))
		})
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(base))
}

func TestPaginate(t *testing.T) {
	list := opps("1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12")

	tcs := []struct {
		name       string
		page       int
		expectIds  []string
		expectPage int
	}{
		{"first page", 1, []string{"1", "2", "3", "4", "5"}, 1},
		{"last partial page", 3, []string{"11", "12"}, 3},
		{"clamped low", 0, []string{"1", "2", "3", "4", "5"}, 1},
		{"clamped high", 9, []string{"11", "12"}, 3},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			p := Paginate(list, tc.page, DefaultPageSize)
			assert.Equal(t, tc.expectIds, ids(p.Items))
			assert.Equal(t, tc.expectPage, p.Number)
			assert.Equal(t, 3, p.Total)
		})
	}

	empty := Paginate(nil, 4, DefaultPageSize)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 1, empty.Number)
	assert.Equal(t, 1, empty.Total)
}

func TestCatalogViewResetsPageOnCountryChange(t *testing.T) {
	var pages []Page
	view := NewCatalogView(testCatalog(t), func(p Page) { pages = append(pages, p) })

	view.SetPage(2)
	assert.Equal(t, 2, view.Visible().Number)

	view.SetCountry("Japan")
	assert.Equal(t, 1, view.Visible().Number)
	assert.Equal(t, []string{"j1", "j2"}, ids(view.Visible().Items))

	view.SetCountry("")
	assert.Equal(t, 1, view.Visible().Number)
	assert.Len(t, pages, 3)
}

func TestCatalogViewSuppressesIdenticalPages(t *testing.T) {
	calls := 0
	view := NewCatalogView(testCatalog(t), func(Page) { calls++ })

	view.SetCountry("Japan")
	view.SetCountry("Japan")
	view.SetPage(1)
	view.SetRanking(nil)
	assert.Equal(t, 1, calls)

	view.SetRanking([]string{"j2", "j1"})
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"j2", "j1"}, ids(view.Visible().Items))
	assert.Equal(t, []string{"j1", "j2"}, ids(view.Unranked().Items))

	view.SetRanking([]string{"j2", "j1"})
	assert.Equal(t, 2, calls)
}

func TestCatalogViewPaging(t *testing.T) {
	view := NewCatalogView(testCatalog(t), nil)

	view.NextPage()
	assert.Equal(t, []string{"d6", "d7"}, ids(view.Visible().Items))
	view.NextPage()
	assert.Equal(t, 2, view.Visible().Number)
	view.PrevPage()
	view.PrevPage()
	assert.Equal(t, 1, view.Visible().Number)
}

func opps(idList ...string) []types.Opportunity {
	out := make([]types.Opportunity, len(idList))
	for i, id := range idList {
		out[i] = types.Opportunity{Id: id, Name: "Opportunity " + id}
	}
	return out
}

func ids(list []types.Opportunity) []string {
	out := make([]string, len(list))
	for i, o := range list {
		out[i] = o.Id
	}
	return out
}
