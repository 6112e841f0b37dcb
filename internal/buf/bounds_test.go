package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddOverflowSafe(math.MinInt, -1); ok {
		t.Fatalf("expected underflow when subtracting from MinInt")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	tests := []struct {
		name   string
		a, b   int
		want   int
		wantOK bool
	}{
		{"zero", 0, math.MaxInt, 0, true},
		{"small", 12, 24, 288, true},
		{"overflow", math.MaxInt/2 + 1, 2, 0, false},
		{"negative pair", -3, -4, 12, true},
		{"mixed", -3, 4, -12, true},
		{"mixed overflow", math.MinInt/2 - 1, 2, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MulOverflowSafe(tt.a, tt.b)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("MulOverflowSafe(%d,%d)=%d,%v want %d,%v", tt.a, tt.b, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSizeFor(t *testing.T) {
	if got, ok := SizeFor(32, 10, 8); !ok || got != 112 {
		t.Fatalf("SizeFor(32,10,8)=%d,%v want 112,true", got, ok)
	}
	if _, ok := SizeFor(0, math.MaxInt, 2); ok {
		t.Fatalf("expected overflow for huge count")
	}
	if _, ok := SizeFor(-1, 1, 1); ok {
		t.Fatalf("expected rejection of negative header")
	}
}

func TestCheckElements(t *testing.T) {
	end, err := CheckElements(128, 32, 12, 8)
	if err != nil || end != 128 {
		t.Fatalf("CheckElements exact fit = %d, %v", end, err)
	}
	if _, err := CheckElements(128, 32, 13, 8); err == nil {
		t.Fatalf("expected bounds error")
	}
	if _, err := CheckElements(128, -1, 1, 8); err == nil {
		t.Fatalf("expected negative offset error")
	}
	if _, err := CheckElements(128, 0, math.MaxInt, 8); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestGrow(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{0, 1}, {1, 2}, {4, 5}, {10, 12}, {100, 120}} {
		if got, ok := Grow(tc.in); !ok || got != tc.want {
			t.Fatalf("Grow(%d)=%d,%v want %d", tc.in, got, ok, tc.want)
		}
	}
	if _, ok := Grow(math.MaxInt); ok {
		t.Fatalf("expected overflow")
	}
}
