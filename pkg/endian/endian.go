// Package endian provides the byte-order primitives used by the container
// codecs: value swaps for every primitive width, in-place swaps over byte
// slices, and a test for whether a byte order matches the host.
package endian

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Native is the host byte order.
var Native binary.ByteOrder = binary.NativeEndian

var order16 = [2]byte{0x01, 0x02}

// IsNative reports whether o lays out integers the same way the host does.
func IsNative(o binary.ByteOrder) bool {
	return o.Uint16(order16[:]) == binary.NativeEndian.Uint16(order16[:])
}

// NeedsSwap reports whether data authored in o must be swapped for the host.
func NeedsSwap(o binary.ByteOrder) bool { return !IsNative(o) }

// Name returns "big" or "little".
func Name(o binary.ByteOrder) string {
	if o.Uint16(order16[:]) == 0x0102 {
		return "big"
	}
	return "little"
}

// Parse maps "big"/"be" and "little"/"le" to a byte order.
func Parse(s string) (binary.ByteOrder, bool) {
	switch s {
	case "big", "be", "BE":
		return binary.BigEndian, true
	case "little", "le", "LE":
		return binary.LittleEndian, true
	default:
		return nil, false
	}
}

func Swap16(v uint16) uint16 { return bits.ReverseBytes16(v) }
func Swap32(v uint32) uint32 { return bits.ReverseBytes32(v) }
func Swap64(v uint64) uint64 { return bits.ReverseBytes64(v) }

func SwapI32(v int32) int32 { return int32(bits.ReverseBytes32(uint32(v))) }

func SwapF32(v float32) float32 {
	return math.Float32frombits(bits.ReverseBytes32(math.Float32bits(v)))
}

// Cond32 swaps v only when swap is set.
func Cond32(v uint32, swap bool) uint32 {
	if swap {
		return Swap32(v)
	}
	return v
}

// InPlace reverses every width-byte word of b. A trailing partial word is
// left untouched. Widths of 0 or 1 are no-ops.
func InPlace(b []byte, width int) {
	if width <= 1 {
		return
	}
	for i := 0; i+width <= len(b); i += width {
		w := b[i : i+width]
		for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
			w[l], w[r] = w[r], w[l]
		}
	}
}

// InPlace16 swaps b[0:2].
func InPlace16(b []byte) { b[0], b[1] = b[1], b[0] }

// InPlace32 swaps b[0:4].
func InPlace32(b []byte) {
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
}
