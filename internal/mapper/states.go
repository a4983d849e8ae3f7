package mapper

import "strings"

// stateAbbreviations maps lower-cased US state, territory and DC names
// to their 2-letter postal codes.
var stateAbbreviations = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT",
	"delaware": "DE", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI",
	"minnesota": "MN", "mississippi": "MS", "missouri": "MO",
	"montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND",
	"ohio": "OH", "oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
	"rhode island": "RI", "south carolina": "SC", "south dakota": "SD",
	"tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
	"district of columbia": "DC", "puerto rico": "PR", "guam": "GU",
	"american samoa": "AS", "u.s. virgin islands": "VI",
	"northern mariana islands": "MP",
}

// NormalizeState converts a full US state name to its 2-letter code.
// Inputs already 2 characters are upper-cased and passed through;
// unrecognized names pass through verbatim.
func NormalizeState(state string) string {
	if state == "" {
		return ""
	}
	if len(state) == 2 {
		return strings.ToUpper(state)
	}
	if abbr, ok := stateAbbreviations[strings.ToLower(state)]; ok {
		return abbr
	}
	return state
}
