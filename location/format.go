package location

import "strings"

// area returns the most local available neighbourhood-grade component
func (a Address) area() string {
	for _, v := range []string{a.Suburb, a.Neighbourhood, a.Village} {
		if v != "" {
			return v
		}
	}
	return ""
}

// city returns the city-grade component, checking the fields Nominatim
// uses for settlements of different sizes
func (a Address) city() string {
	for _, v := range []string{a.City, a.Town, a.Village} {
		if v != "" {
			return v
		}
	}
	return ""
}

// district returns the district-grade component
func (a Address) district() string {
	for _, v := range []string{a.StateDistrict, a.County, a.District} {
		if v != "" {
			return v
		}
	}
	return ""
}

// FormatAddress builds the most specific available display string,
// trying in order: (area, city, district), (city, district),
// (city, state), city alone. Returns "" when nothing usable is
// present; the caller falls back to raw coordinates.
func FormatAddress(a Address) string {
	area, city, district := a.area(), a.city(), a.district()

	candidates := [][]string{
		{area, city, district},
		{city, district},
		{city, a.State},
		{city},
	}

	for _, parts := range candidates {
		if allPresent(parts) {
			return strings.Join(dedupe(parts), ", ")
		}
	}
	return ""
}

func allPresent(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return len(parts) > 0
}

// dedupe drops adjacent duplicates: villages double as both area and
// city, and joining "X, X" reads wrong
func dedupe(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}

// ClassifyAccuracy derives a coarse label from which structured fields
// the reverse geocode returned
func ClassifyAccuracy(a Address) Accuracy {
	switch {
	case a.HouseNumber != "" || a.Road != "":
		return AccuracyStreet
	case a.area() != "":
		return AccuracyArea
	case a.city() != "":
		return AccuracyCity
	default:
		return AccuracyApproximate
	}
}
