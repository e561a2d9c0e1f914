package utils

import "strings"

// cleanRut strips everything except digits and the verifier K.
func cleanRut(rut string) string {
	var b strings.Builder
	for _, r := range rut {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteRune('K')
		}
	}
	return b.String()
}

// rutVerifier computes the modulo-11 check digit for a RUT number.
func rutVerifier(number string) string {
	sum := 0
	factor := 2
	for i := len(number) - 1; i >= 0; i-- {
		sum += int(number[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch rest := 11 - sum%11; rest {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return string(rune('0' + rest))
	}
}

// ValidRut reports whether rut carries a correct check digit.
func ValidRut(rut string) bool {
	clean := cleanRut(rut)
	if len(clean) < 8 || len(clean) > 9 {
		return false
	}
	number := clean[:len(clean)-1]
	dv := clean[len(clean)-1:]
	return dv == rutVerifier(number)
}

// FormatRut renders a RUT as 12.345.678-9 for display. Presentation only;
// entities keep the raw value. Inputs too short to be a RUT pass through.
func FormatRut(rut string) string {
	if rut == "" {
		return ""
	}
	clean := cleanRut(rut)
	if len(clean) < 8 {
		return rut
	}

	number := clean[:len(clean)-1]
	dv := clean[len(clean)-1:]

	var b strings.Builder
	for i, r := range number {
		if i > 0 && (len(number)-i)%3 == 0 {
			b.WriteRune('.')
		}
		b.WriteRune(r)
	}
	return b.String() + "-" + dv
}

// FormatPhone renders a Chilean mobile number as +56 9 XXXX XXXX when it has
// the expected shape; anything else passes through untouched.
func FormatPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "569"):
		return "+56 9 " + digits[3:7] + " " + digits[7:]
	case len(digits) == 9 && strings.HasPrefix(digits, "9"):
		return "+56 9 " + digits[1:5] + " " + digits[5:]
	default:
		return phone
	}
}
