package utils

import (
	"regexp"
	"strings"
)

// Chilean truck plate formats: the old AA1234 series and the BBBB12 series.
var platePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{2}[0-9]{4}$`),
	regexp.MustCompile(`^[A-Z]{4}[0-9]{2}$`),
}

// NormalizePlate uppercases and strips separators so "ab-12.34" and "AB1234"
// compare equal.
func NormalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	plate = strings.ReplaceAll(plate, "-", "")
	plate = strings.ReplaceAll(plate, ".", "")
	plate = strings.ReplaceAll(plate, " ", "")
	return plate
}

// ValidPlate reports whether the normalized plate matches an accepted format.
func ValidPlate(plate string) bool {
	plate = NormalizePlate(plate)
	for _, p := range platePatterns {
		if p.MatchString(plate) {
			return true
		}
	}
	return false
}
