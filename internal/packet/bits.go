package packet

// Bit depth bounds for interpreting raw codes.
const (
	MinBits     = 8
	MaxBits     = 24
	DefaultBits = 12
)

// ClampBits limits a bit depth to [MinBits, MaxBits].
func ClampBits(bits int) int {
	return min(max(bits, MinBits), MaxBits)
}

// Midpoint returns the center code of an unsigned range of the given depth, (2^bits-1)/2.
func Midpoint(bits int) float64 {
	bits = ClampBits(bits)
	return float64(uint32(1)<<bits-1) / 2
}

// NormalizationGainForBits returns the factor mapping a centered code to [-1, 1].
func NormalizationGainForBits(bits int) float64 {
	return 1 / max(1, Midpoint(bits))
}

// ScaleTo24BitCounts returns the multiplier that expresses a code of the given
// depth in 24-bit counts.
func ScaleTo24BitCounts(bits int) float64 {
	return float64(uint32(1) << (MaxBits - ClampBits(bits)))
}

// ReverseBytes24 swaps the byte order of a 24-bit value.
func ReverseBytes24(v uint32) uint32 {
	v &= Mask24
	return (v&0xFF)<<16 | v&0xFF00 | v>>16
}

// Normalize maps a raw code to a centered value in [-1, 1] using the given
// bit depth: (raw - mid) / mid, clamped.
func Normalize(raw uint32, bits int) float64 {
	mid := Midpoint(bits)
	v := (float64(raw&Mask24) - mid) / mid
	return min(max(v, -1), 1)
}
