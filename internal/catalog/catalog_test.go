package catalog

import "testing"

func TestValidDiameter(t *testing.T) {
	for d := 22; d <= 60; d += 2 {
		if !ValidDiameter(d) {
			t.Errorf("Diameter %d should be valid", d)
		}
	}

	for _, d := range []int{0, 20, 21, 23, 61, 62, -22} {
		if ValidDiameter(d) {
			t.Errorf("Diameter %d should not be valid", d)
		}
	}
}

func TestValidLength(t *testing.T) {
	for _, l := range []float64{2.00, 2.50, 2.60, 3.80, 5.10} {
		if !ValidLength(l) {
			t.Errorf("Length %.2f should be valid", l)
		}
	}

	for _, l := range []float64{0, 1.0, 2.4, 3.0, 5.2, -2.0} {
		if ValidLength(l) {
			t.Errorf("Length %.2f should not be valid", l)
		}
	}
}

func TestValidBank(t *testing.T) {
	for n := 1; n <= MaxBanks; n++ {
		if !ValidBank(n) {
			t.Errorf("Bank %d should be valid", n)
		}
	}
	if ValidBank(0) || ValidBank(5) || ValidBank(-1) {
		t.Error("Banks outside 1..4 should not be valid")
	}
}

func TestValidQuantity(t *testing.T) {
	if !ValidQuantity(0) || !ValidQuantity(999) {
		t.Error("Boundary quantities 0 and 999 should be valid")
	}
	if ValidQuantity(-1) || ValidQuantity(1000) {
		t.Error("Quantities outside 0..999 should not be valid")
	}
}

func TestDiametersCopy(t *testing.T) {
	ds := Diameters()
	ds[0] = 999
	if Diameters()[0] != 22 {
		t.Error("Diameters should return a copy, not the backing slice")
	}
}
