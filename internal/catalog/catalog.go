package catalog

// Reference bounds for load tallying. These mirror the values configured on
// the measuring yard and are shipped to the mobile client on every config
// pull, so they only change together with an app release.

const (
	// MaxBanks is the number of physical compartments on a truck.
	MaxBanks = 4

	// MaxLogsPerCombination caps the quantity of a single
	// (diameter, length) line inside one bank.
	MaxLogsPerCombination = 999
)

// diameters in centimeters, even values only.
var diameters = []int{22, 24, 26, 28, 30, 32, 34, 36, 38, 40, 42, 44, 46, 48, 50, 52, 54, 56, 58, 60}

// lengths in meters.
var lengths = []float64{2.00, 2.50, 2.60, 3.80, 5.10}

var diameterSet = func() map[int]struct{} {
	m := make(map[int]struct{}, len(diameters))
	for _, d := range diameters {
		m[d] = struct{}{}
	}
	return m
}()

var lengthSet = func() map[float64]struct{} {
	m := make(map[float64]struct{}, len(lengths))
	for _, l := range lengths {
		m[l] = struct{}{}
	}
	return m
}()

// Diameters returns the valid log diameters in centimeters.
func Diameters() []int {
	out := make([]int, len(diameters))
	copy(out, diameters)
	return out
}

// Lengths returns the valid log lengths in meters.
func Lengths() []float64 {
	out := make([]float64, len(lengths))
	copy(out, lengths)
	return out
}

// ValidDiameter reports whether d is an accepted diameter.
func ValidDiameter(d int) bool {
	_, ok := diameterSet[d]
	return ok
}

// ValidLength reports whether l is an accepted length.
func ValidLength(l float64) bool {
	_, ok := lengthSet[l]
	return ok
}

// ValidBank reports whether n is a usable bank number.
func ValidBank(n int) bool {
	return n >= 1 && n <= MaxBanks
}

// ValidQuantity reports whether q is a storable line quantity.
func ValidQuantity(q int) bool {
	return q >= 0 && q <= MaxLogsPerCombination
}
