// Package buf contains overflow-safe size arithmetic for laying out typed
// elements inside raw byte buffers.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow int.
// This is essential for count * elementSize calculations when sizing buffers.
func MulOverflowSafe(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > 0 && b > 0 {
		if a > math.MaxInt/b {
			return 0, false
		}
	}
	if a < 0 && b < 0 {
		if a < math.MaxInt/b {
			return 0, false
		}
	}
	if a > 0 && b < 0 {
		if b < math.MinInt/a {
			return 0, false
		}
	}
	if a < 0 && b > 0 {
		if a < math.MinInt/b {
			return 0, false
		}
	}
	return a * b, true
}

// SizeFor returns header + count*elementSize, the byte size of a buffer holding
// a fixed header followed by count elements. ok is false on overflow or
// negative inputs.
func SizeFor(header, count, elementSize int) (int, bool) {
	if header < 0 || count < 0 || elementSize < 0 {
		return 0, false
	}
	body, ok := MulOverflowSafe(count, elementSize)
	if !ok {
		return 0, false
	}
	return AddOverflowSafe(header, body)
}

// CheckElements validates that count elements of elementSize bytes fit in a
// buffer of bufLen bytes starting at offset. Returns the end offset if valid,
// or an error describing the specific failure (overflow or out of bounds).
//
//	end, err := buf.CheckElements(len(data), headerSize, n, stride)
//	if err != nil {
//	    return fmt.Errorf("stream: %w", err)
//	}
func CheckElements(bufLen, offset, count, elementSize int) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative offset: %d", offset)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	if elementSize < 0 {
		return 0, fmt.Errorf("negative element size: %d", elementSize)
	}

	totalSize, ok := MulOverflowSafe(count, elementSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * elemSize=%d", count, elementSize)
	}

	endOffset, ok := AddOverflowSafe(offset, totalSize)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, totalSize)
	}

	if endOffset > bufLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", endOffset, bufLen)
	}

	return endOffset, nil
}

// Grow returns n padded by a fifth (at least one), the growth step used by
// every growable container. ok is false on overflow.
func Grow(n int) (int, bool) {
	step := n / 5
	if step < 1 {
		step = 1
	}
	return AddOverflowSafe(n, step)
}
