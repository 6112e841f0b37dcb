// Package pod overlays trivially-copyable Go types onto raw byte buffers.
//
// A type is trivially copyable (plain old data) when it contains no Go
// pointers: no strings, slices, maps, channels, functions, interfaces or
// pointers, at any depth. Only such types may live in memory the garbage
// collector does not scan for them (mmap'd files, []byte blocks moved by an
// external allocator), which is why every buffer view checks its element
// types with Check when it is constructed.
package pod

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/joshuapare/memkit/internal/crash"
	"github.com/joshuapare/memkit/pkg/types"
)

// Check returns an error describing the first field of T that makes it unsafe
// to store in an unscanned byte buffer.
func Check[T any]() error {
	t := reflect.TypeFor[T]()
	if path, ok := trivial(t, t.String()); !ok {
		return fmt.Errorf("pod: %s is not trivially copyable (%s)", t, path)
	}
	return nil
}

// IsTrivial reports whether T is trivially copyable.
func IsTrivial[T any]() bool {
	return Check[T]() == nil
}

// MustCheck raises an InvalidArguments fatal error when T is not trivially
// copyable or has zero size.
func MustCheck[T any](what string) {
	if err := Check[T](); err != nil {
		crash.Fatal(types.ErrKindInvalidArguments, "%s: %v", what, err)
	}
	if Size[T]() == 0 {
		crash.Fatal(types.ErrKindInvalidArguments, "%s: %s has zero size", what, reflect.TypeFor[T]())
	}
}

func trivial(t reflect.Type, path string) (string, bool) {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return "", true
	case reflect.Array:
		return trivial(t.Elem(), path+"[]")
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if p, ok := trivial(f.Type, path+"."+f.Name); !ok {
				return p, false
			}
		}
		return "", true
	default:
		return path + " is " + t.Kind().String(), false
	}
}

// CheckBytewise returns an error when two values of T that compare equal
// with == may differ in their bytes: floats and complex numbers (+0 and -0),
// and structs with padding. Hashing such a T by its bytes is unsound.
func CheckBytewise[T any]() error {
	t := reflect.TypeFor[T]()
	if path, ok := bytewise(t, t.String()); !ok {
		return fmt.Errorf("pod: %s is not bytewise comparable (%s)", t, path)
	}
	return nil
}

func bytewise(t reflect.Type, path string) (string, bool) {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return path + " is " + t.Kind().String(), false
	case reflect.Array:
		return bytewise(t.Elem(), path+"[]")
	case reflect.Struct:
		var used uintptr
		for i := range t.NumField() {
			f := t.Field(i)
			if f.Name == "_" {
				return path + "._ is a blank field", false
			}
			if f.Offset != used {
				return path + " has padding before ." + f.Name, false
			}
			if p, ok := bytewise(f.Type, path+"."+f.Name); !ok {
				return p, false
			}
			used = f.Offset + f.Type.Size()
		}
		if used != t.Size() {
			return path + " has trailing padding", false
		}
		return "", true
	default:
		return "", true
	}
}

// Size returns the in-memory size of T in bytes.
func Size[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Align returns the alignment of T in bytes.
func Align[T any]() int {
	var zero T
	return int(unsafe.Alignof(zero))
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Slice returns n elements of T overlaid on b starting at byte offset off.
// The result aliases b and is invalidated by any relocation of b.
func Slice[T any](b []byte, off, n int) []T {
	if n == 0 {
		return nil
	}
	size := Size[T]()
	if off < 0 || n < 0 || size == 0 || off+n*size > len(b) {
		crash.Fatal(types.ErrKindOutOfBounds,
			"pod: %d elements of %d bytes at offset %d exceed buffer of %d bytes", n, size, off, len(b))
	}
	p := unsafe.Pointer(&b[off])
	if uintptr(p)%uintptr(Align[T]()) != 0 {
		crash.Fatal(types.ErrKindInvalidMemory, "pod: offset %d misaligned for %d-byte alignment", off, Align[T]())
	}
	return unsafe.Slice((*T)(p), n)
}

// At returns a pointer to the T stored at byte offset off in b.
func At[T any](b []byte, off int) *T {
	return &Slice[T](b, off, 1)[0]
}

// Bytes returns the raw bytes of *v. The result aliases v.
func Bytes[T any](v *T) []byte {
	size := Size[T]()
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), size)
}
