package abi

import (
	"math"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/atone/errors"
)

const (
	MaxStringSize = 1 << 30 // 1 GB max string size
	MaxListLength = 1 << 27 // 128M max elements
	MaxAlloc      = 1 << 30 // 1 GB max single allocation
)

const (
	canonicalNaN32 = 0x7fc00000
	canonicalNaN64 = 0x7ff8000000000000
)

// Config bounds what the encoder and decoder accept. Zero fields take the
// package maximums.
type Config struct {
	MaxListLength uint32
	MaxStringSize uint32
}

func (c Config) maxListLength() uint32 {
	if c.MaxListLength > 0 {
		return c.MaxListLength
	}
	return MaxListLength
}

func (c Config) maxStringSize() uint32 {
	if c.MaxStringSize > 0 {
		return c.MaxStringSize
	}
	return MaxStringSize
}

// Info is the size and alignment of a type in linear memory.
type Info struct {
	Size  uint32
	Align uint32
}

// Layout returns the canonical ABI layout of the element types lists may
// hold here: primitives, strings and nested lists.
func Layout(t wit.Type) (Info, error) {
	switch t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}, nil
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}, nil
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}, nil
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}, nil
	case wit.String:
		return Info{Size: 8, Align: 4}, nil // [ptr: u32, len: u32]
	}
	if _, ok := listElem(t); ok {
		return Info{Size: 8, Align: 4}, nil
	}
	return Info{}, errors.Unsupported(errors.PhaseEncode, "list element type "+TypeName(t))
}

// listElem returns the element type if t is list<T>.
func listElem(t wit.Type) (wit.Type, bool) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil, false
	}
	l, ok := td.Kind.(*wit.List)
	if !ok {
		return nil, false
	}
	return l.Type, true
}

// TypeName renders t in WIT syntax.
func TypeName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.U16:
		return "u16"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.S8:
		return "s8"
	case wit.S16:
		return "s16"
	case wit.S32:
		return "s32"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case nil:
		return "nil"
	}
	if elem, ok := listElem(t); ok {
		return "list<" + TypeName(elem) + ">"
	}
	if td, ok := t.(*wit.TypeDef); ok && td.Name != nil {
		return *td.Name
	}
	return "unknown"
}

// ListOf builds the type list<elem>.
func ListOf(elem wit.Type) wit.Type {
	return &wit.TypeDef{Kind: &wit.List{Type: elem}}
}

func safeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

func safeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// validChar rejects surrogates and values past the last code point.
func validChar(r int64) bool {
	if r >= 0xD800 && r <= 0xDFFF {
		return false
	}
	return r >= 0 && r < 0x110000
}
