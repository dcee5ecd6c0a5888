package planner

import "strings"

// minSubstringMatch is the shortest normalized name allowed to match by
// substring. Shorter tokens such as "us" would otherwise match almost anything.
const minSubstringMatch = 5

var synonymGroups = [][]string{
	{"united states", "united states of america", "usa", "us", "u.s.", "u.s.a.", "america"},
	{"united kingdom", "uk", "u.k.", "great britain", "britain", "england", "scotland", "wales", "northern ireland"},
	{"south korea", "korea", "republic of korea", "korea, republic of"},
	{"north korea", "democratic people's republic of korea", "dprk"},
	{"russia", "russian federation"},
	{"czechia", "czech republic"},
	{"ivory coast", "côte d'ivoire", "cote d'ivoire"},
	{"democratic republic of the congo", "dem. rep. congo", "dr congo", "drc", "congo (kinshasa)"},
	{"republic of the congo", "congo", "congo (brazzaville)"},
	{"myanmar", "burma"},
	{"eswatini", "swaziland"},
	{"north macedonia", "macedonia"},
	{"united arab emirates", "uae"},
	{"vietnam", "viet nam"},
	{"laos", "lao pdr", "lao people's democratic republic"},
	{"tanzania", "united republic of tanzania"},
	{"bosnia and herzegovina", "bosnia and herz.", "bosnia"},
	{"dominican republic", "dominican rep."},
	{"central african republic", "central african rep."},
	{"timor-leste", "east timor"},
	{"cabo verde", "cape verde"},
	{"turkey", "türkiye", "turkiye"},
	{"netherlands", "the netherlands", "holland"},
	{"south sudan", "s. sudan"},
	{"equatorial guinea", "eq. guinea"},
	{"solomon islands", "solomon is."},
	{"western sahara", "w. sahara"},
	{"falkland islands", "falkland is."},
	{"iran", "islamic republic of iran"},
	{"syria", "syrian arab republic"},
	{"bolivia", "plurinational state of bolivia"},
	{"venezuela", "bolivarian republic of venezuela"},
	{"palestine", "state of palestine", "palestinian territories"},
	{"taiwan", "republic of china"},
	{"moldova", "republic of moldova"},
}

var synonymIndex = buildSynonymIndex(synonymGroups)

func buildSynonymIndex(groups [][]string) map[string]int {
	idx := make(map[string]int)
	for i, group := range groups {
		for _, name := range group {
			idx[normalizeCountry(name)] = i
		}
	}
	return idx
}

func normalizeCountry(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MatchCountry reports whether an opportunity's country refers to the
// selected country. Names match exactly, through a shared synonym group, or
// by substring when the shorter name has at least five characters.
func MatchCountry(country, selected string) bool {
	a, b := normalizeCountry(country), normalizeCountry(selected)
	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}

	ga, okA := synonymIndex[a]
	gb, okB := synonymIndex[b]
	if okA && okB && ga == gb {
		return true
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	return len(shorter) >= minSubstringMatch && strings.Contains(longer, shorter)
}

// EligibleCountries lists the polygon names a controller may focus.
var EligibleCountries = []string{
	"Afghanistan", "Albania", "Algeria", "Angola", "Argentina", "Armenia",
	"Australia", "Austria", "Azerbaijan", "Bangladesh", "Belarus", "Belgium",
	"Belize", "Benin", "Bhutan", "Bolivia", "Bosnia and Herzegovina", "Botswana",
	"Brazil", "Bulgaria", "Burkina Faso", "Burundi", "Cambodia", "Cameroon",
	"Canada", "Central African Republic", "Chad", "Chile", "China", "Colombia",
	"Costa Rica", "Croatia", "Cuba", "Cyprus", "Czechia", "Democratic Republic of the Congo",
	"Denmark", "Djibouti", "Dominican Republic", "Ecuador", "Egypt", "El Salvador",
	"Equatorial Guinea", "Eritrea", "Estonia", "Eswatini", "Ethiopia", "Fiji",
	"Finland", "France", "Gabon", "Gambia", "Georgia", "Germany",
	"Ghana", "Greece", "Greenland", "Guatemala", "Guinea", "Guinea-Bissau",
	"Guyana", "Haiti", "Honduras", "Hungary", "Iceland", "India",
	"Indonesia", "Iran", "Iraq", "Ireland", "Israel", "Italy",
	"Ivory Coast", "Jamaica", "Japan", "Jordan", "Kazakhstan", "Kenya",
	"Kosovo", "Kuwait", "Kyrgyzstan", "Laos", "Latvia", "Lebanon",
	"Lesotho", "Liberia", "Libya", "Lithuania", "Luxembourg", "Madagascar",
	"Malawi", "Malaysia", "Mali", "Mauritania", "Mexico", "Moldova",
	"Mongolia", "Montenegro", "Morocco", "Mozambique", "Myanmar", "Namibia",
	"Nepal", "Netherlands", "New Zealand", "Nicaragua", "Niger", "Nigeria",
	"North Macedonia", "Norway", "Oman", "Pakistan", "Panama", "Papua New Guinea",
	"Paraguay", "Peru", "Philippines", "Poland", "Portugal", "Qatar",
	"Republic of the Congo", "Romania", "Rwanda", "Saudi Arabia", "Senegal", "Serbia",
	"Sierra Leone", "Slovakia", "Slovenia", "Somalia", "South Africa", "South Korea",
	"South Sudan", "Spain", "Sri Lanka", "Sudan", "Suriname", "Sweden",
	"Switzerland", "Syria", "Taiwan", "Tajikistan", "Tanzania", "Thailand",
	"Timor-Leste", "Togo", "Trinidad and Tobago", "Tunisia", "Turkey", "Turkmenistan",
	"Uganda", "Ukraine", "United Arab Emirates", "United Kingdom", "United States of America", "Uruguay",
	"Uzbekistan", "Vanuatu", "Venezuela", "Vietnam", "Yemen", "Zambia",
	"Zimbabwe",
}

var eligibleIndex = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EligibleCountries))
	for _, c := range EligibleCountries {
		m[normalizeCountry(c)] = struct{}{}
	}
	return m
}()

// IsEligibleCountry reports whether name is on the allow-list.
func IsEligibleCountry(name string) bool {
	_, ok := eligibleIndex[normalizeCountry(name)]
	return ok
}
