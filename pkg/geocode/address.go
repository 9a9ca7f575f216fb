package geocode

import (
	"regexp"
	"slices"
	"strings"
)

// Address is a free text postal address as entered by a user.
type Address struct {
	Line       string `json:"line"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

var (
	abbreviations = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)^Ca\.`), "Calle"},
		{regexp.MustCompile(`(?i)^C\.`), "Calle"},
		{regexp.MustCompile(`(?i)^Av\.`), "Avenida"},
		{regexp.MustCompile(`(?i)^Avda\.`), "Avenida"},
	}

	floorSuffix = regexp.MustCompile(`,?\s*\d+º.*$`)
	pisoSuffix  = regexp.MustCompile(`(?i),?\s*\bpiso\b.*$`)

	trailingNumber      = regexp.MustCompile(`\s+\d+\s*$`)
	trailingCommaNumber = regexp.MustCompile(`,\s*\d+\s*$`)
)

// NormalizeLine expands street type abbreviations and drops floor and door
// fragments, e.g. "C. Mayor 5, 3º B" becomes "Calle Mayor 5".
func NormalizeLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	for _, a := range abbreviations {
		line = a.re.ReplaceAllString(line, a.repl)
	}
	line = floorSuffix.ReplaceAllString(line, "")
	line = pisoSuffix.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// StripBuildingNumber normalizes line and removes a trailing building number.
func StripBuildingNumber(line string) string {
	line = NormalizeLine(line)
	if line == "" {
		return ""
	}
	line = trailingCommaNumber.ReplaceAllString(line, "")
	line = trailingNumber.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func joinQuery(parts ...string) string {
	nonBlank := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonBlank = append(nonBlank, p)
		}
	}
	return strings.Join(nonBlank, ", ")
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// cascadeQueries returns the provider queries for addr from most to least
// precise. Steps whose inputs are blank are omitted, as is a query identical
// to an earlier one, so the result holds at most five queries.
func cascadeQueries(addr Address, defaultCountry string) []string {
	country := strings.TrimSpace(addr.Country)
	if country == "" {
		country = defaultCountry
	}

	queries := make([]string, 0, 5)
	add := func(q string) {
		if !slices.Contains(queries, q) {
			queries = append(queries, q)
		}
	}

	if !blank(addr.Line) || !blank(addr.City) || !blank(addr.PostalCode) {
		add(joinQuery(NormalizeLine(addr.Line), addr.City, addr.PostalCode, country))
	}

	if !blank(addr.Line) {
		stripped := StripBuildingNumber(addr.Line)
		add(joinQuery(stripped, addr.City, addr.PostalCode, country))

		if !blank(addr.City) {
			add(joinQuery(stripped, addr.City, country))
		}
	}

	if !blank(addr.PostalCode) {
		add(joinQuery(addr.PostalCode, country))
	}

	if !blank(addr.City) {
		add(joinQuery(addr.City, country))
	}

	return queries
}
