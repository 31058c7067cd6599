// Package errors provides structured error types for the atone library.
//
// Errors are categorized by Phase (encode or decode) and Kind (error category).
// The Error type includes rich context: element path, Go/wire type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("[2]").
//		GoType("int32").
//		WireType("string").
//		Detail("cannot decode string into integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "int32", "string")
//	err := errors.Overflow(errors.PhaseDecode, path, 300, "uint8")
//
// Sequence decoders prefix the failing element index onto the path with
// AtIndex, so a failure deep inside nested sequences reads as "[1][4]".
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
