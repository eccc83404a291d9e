package scoring

import "strings"

var stateNames = map[string]string{
	"AL": "alabama", "AK": "alaska", "AZ": "arizona", "AR": "arkansas", "CA": "california",
	"CO": "colorado", "CT": "connecticut", "DE": "delaware", "FL": "florida", "GA": "georgia",
	"HI": "hawaii", "ID": "idaho", "IL": "illinois", "IN": "indiana", "IA": "iowa",
	"KS": "kansas", "KY": "kentucky", "LA": "louisiana", "ME": "maine", "MD": "maryland",
	"MA": "massachusetts", "MI": "michigan", "MN": "minnesota", "MS": "mississippi", "MO": "missouri",
	"MT": "montana", "NE": "nebraska", "NV": "nevada", "NH": "new hampshire", "NJ": "new jersey",
	"NM": "new mexico", "NY": "new york", "NC": "north carolina", "ND": "north dakota", "OH": "ohio",
	"OK": "oklahoma", "OR": "oregon", "PA": "pennsylvania", "RI": "rhode island", "SC": "south carolina",
	"SD": "south dakota", "TN": "tennessee", "TX": "texas", "UT": "utah", "VT": "vermont",
	"VA": "virginia", "WA": "washington", "WV": "west virginia", "WI": "wisconsin", "WY": "wyoming",
	"DC": "district of columbia", "PR": "puerto rico",
}

var multiStateMarkers = []string{
	"nationwide", "multiple", "various", "multi-state", "multistate", "all states",
	"united states", "national", "conus", "worldwide",
}

// stateCode resolves "TX", "tx" or "Texas" to "TX".
func stateCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if _, ok := stateNames[strings.ToUpper(s)]; ok && len(s) == 2 {
		return strings.ToUpper(s), true
	}
	lower := strings.ToLower(s)
	for code, name := range stateNames {
		if name == lower {
			return code, true
		}
	}
	return "", false
}

// statesIn returns the distinct state codes referenced by a location string.
// Two-letter codes must be upper case in the source text ("Austin, TX").
func statesIn(location string) map[string]bool {
	found := make(map[string]bool)
	for _, raw := range strings.Fields(location) {
		tok := strings.Trim(raw, ".,;:()")
		if len(tok) == 2 && tok == strings.ToUpper(tok) {
			if _, ok := stateNames[tok]; ok {
				found[tok] = true
			}
		}
	}
	lower := " " + strings.Join(tokenize(location), " ") + " "
	for code, name := range stateNames {
		if strings.Contains(lower, " "+name+" ") {
			// "west virginia" also contains "virginia"
			if name == "virginia" && strings.Contains(lower, " west virginia ") && !strings.Contains(strings.ReplaceAll(lower, " west virginia ", " "), " virginia ") {
				continue
			}
			found[code] = true
		}
	}
	return found
}

func isMultiState(location string) bool {
	lower := strings.ToLower(location)
	for _, m := range multiStateMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return len(statesIn(location)) > 1
}

func isSingleState(location string) bool {
	if strings.TrimSpace(location) == "" || isMultiState(location) {
		return false
	}
	return len(statesIn(location)) == 1
}
