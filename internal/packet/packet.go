// Package packet defines the fixed-shape multi-channel sample batch produced by
// the framer and shared, read-only, by every downstream consumer.
package packet

// Packet shape.
const (
	NumChannels = 4  // channels per packet
	BufferLen   = 16 // samples per channel per packet
)

// Frame sentinel bytes.
const (
	Sentinel0 byte = 0x55
	Sentinel1 byte = 0xAA

	HeaderSize = 2
)

// Wire sample widths.
const (
	BytesPerSample24 = 3
	BytesPerSample16 = 2
)

// Mask24 keeps the meaningful low 24 bits of a sample.
const Mask24 uint32 = 0x00FFFFFF

// Packet is one parsed frame: NumChannels x BufferLen unsigned samples.
// Only the low 24 bits of a sample carry data. Packets are never mutated
// after the framer emits them.
type Packet struct {
	Samples [NumChannels][BufferLen]uint32
}

// PayloadSize returns the payload length in bytes for the given sample width.
func PayloadSize(bytesPerSample int) int {
	return NumChannels * BufferLen * bytesPerSample
}

// Size returns the full frame length, sentinel included.
func Size(bytesPerSample int) int {
	return HeaderSize + PayloadSize(bytesPerSample)
}

// RecordSize is the length of one on-disk record. Records are always 24-bit.
func RecordSize() int {
	return Size(BytesPerSample24)
}

// Channel returns a copy of one channel's samples.
func (p *Packet) Channel(ch int) [BufferLen]uint32 {
	return p.Samples[ch]
}

// AppendRecord appends the on-disk encoding of p to dst: the sentinel followed
// by every channel's samples as 3-byte little-endian values masked to 24 bits.
func (p *Packet) AppendRecord(dst []byte) []byte {
	dst = append(dst, Sentinel0, Sentinel1)
	for ch := range NumChannels {
		for i := range BufferLen {
			v := p.Samples[ch][i] & Mask24
			dst = append(dst, byte(v), byte(v>>8), byte(v>>16))
		}
	}
	return dst
}
