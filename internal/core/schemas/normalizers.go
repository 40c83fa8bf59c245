package schemas

import "strings"

// NormalizeIdentifier trims surrounding whitespace. Inner characters are
// kept as written so a near-miss ID never matches a different vehicle.
func NormalizeIdentifier(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeCode upper-cases a categorical code and maps spaces and hyphens
// to underscores, so "preventive", " Preventive " and "PREVENTIVE" agree.
func NormalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
