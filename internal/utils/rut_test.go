package utils

import "testing"

func TestValidRut(t *testing.T) {
	valid := []string{"12.345.678-5", "123456785", "11.111.111-1", "11111111-1"}
	for _, r := range valid {
		if !ValidRut(r) {
			t.Errorf("RUT %q should be valid", r)
		}
	}

	invalid := []string{"", "12.345.678-9", "1234567", "11111111-K", "not-a-rut"}
	for _, r := range invalid {
		if ValidRut(r) {
			t.Errorf("RUT %q should not be valid", r)
		}
	}
}

func TestFormatRut(t *testing.T) {
	if got := FormatRut("123456785"); got != "12.345.678-5" {
		t.Errorf("Expected 12.345.678-5, got %s", got)
	}
	if got := FormatRut("11111111-1"); got != "11.111.111-1" {
		t.Errorf("Expected 11.111.111-1, got %s", got)
	}
	// Too short to be a RUT: passes through untouched
	if got := FormatRut("123"); got != "123" {
		t.Errorf("Expected passthrough, got %s", got)
	}
	if got := FormatRut(""); got != "" {
		t.Errorf("Expected empty, got %s", got)
	}
}

func TestFormatPhone(t *testing.T) {
	if got := FormatPhone("56987654321"); got != "+56 9 8765 4321" {
		t.Errorf("Expected +56 9 8765 4321, got %s", got)
	}
	if got := FormatPhone("987654321"); got != "+56 9 8765 4321" {
		t.Errorf("Expected +56 9 8765 4321, got %s", got)
	}
	if got := FormatPhone("1234"); got != "1234" {
		t.Errorf("Expected passthrough, got %s", got)
	}
}
