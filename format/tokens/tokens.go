// Package tokens is an in-memory format that records sequences as a flat
// token stream. Tests use it to assert exactly what a value emits and to
// replay hand-written, possibly forged, inputs.
package tokens

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/wippyai/atone/internal/scalar"
)

// Kind identifies a token.
type Kind uint8

const (
	KindSeq Kind = iota + 1
	KindSeqEnd
	KindBool
	KindI64
	KindU64
	KindU32
	KindF64
	KindStr
)

func (k Kind) String() string {
	switch k {
	case KindSeq:
		return "Seq"
	case KindSeqEnd:
		return "SeqEnd"
	case KindBool:
		return "Bool"
	case KindI64:
		return "I64"
	case KindU64:
		return "U64"
	case KindU32:
		return "U32"
	case KindF64:
		return "F64"
	case KindStr:
		return "Str"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Token is one entry of a stream. Len is only meaningful for KindSeq, where
// a negative value means the length was not announced.
type Token struct {
	Value scalar.Value
	Len   int
	Kind  Kind
}

func Seq(n int) Token { return Token{Kind: KindSeq, Len: n} }
func SeqEnd() Token { return Token{Kind: KindSeqEnd} }
func Bool(b bool) Token { return Token{Kind: KindBool, Value: scalar.BoolValue(b)} }
func I64(i int64) Token { return Token{Kind: KindI64, Value: scalar.IntValue(i)} }
func U64(u uint64) Token { return Token{Kind: KindU64, Value: scalar.UintValue(u)} }
func U32(u uint32) Token { return Token{Kind: KindU32, Value: scalar.UintValue(uint64(u))} }
func F64(f float64) Token { return Token{Kind: KindF64, Value: scalar.FloatValue(f)} }
func Str(s string) Token { return Token{Kind: KindStr, Value: scalar.StringValue(s)} }

func (t Token) String() string {
	switch t.Kind {
	case KindSeq:
		if t.Len < 0 {
			return "Seq(?)"
		}
		return fmt.Sprintf("Seq(%d)", t.Len)
	case KindSeqEnd:
		return "SeqEnd"
	case KindStr:
		return fmt.Sprintf("Str(%q)", t.Value.Str)
	default:
		return fmt.Sprintf("%s(%v)", t.Kind, t.Value.Native())
	}
}

// scalarToken maps an element to the token its Go type emits.
func scalarToken(v any) (Token, error) {
	val, err := scalar.Of(v)
	if err != nil {
		return Token{}, err
	}
	switch val.Kind {
	case scalar.Bool:
		return Bool(val.Bool), nil
	case scalar.Int:
		return I64(val.Int), nil
	case scalar.Uint:
		if isUint32(v) {
			return U32(uint32(val.Uint)), nil
		}
		return U64(val.Uint), nil
	case scalar.Float:
		return F64(val.Float), nil
	default:
		return Str(val.Str), nil
	}
}

func isUint32(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Uint32
}
