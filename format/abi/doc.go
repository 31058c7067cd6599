// Package abi lowers sequences into, and lifts them out of, WebAssembly
// linear memory using the Component Model canonical ABI layout for
// list<T>.
//
// A list is a (pointer, length) pair referring to length contiguous
// elements, each laid out at the element type's size and alignment:
//
//	bool, u8, s8          1 byte
//	u16, s16              2 bytes
//	u32, s32, f32, char   4 bytes
//	u64, s64, f64         8 bytes
//	string, list<T>       8 bytes (ptr: u32, len: u32)
//
// Encoding needs the element count up front, so sequences of unknown length
// are rejected. When decoding, the guest-supplied length is bounded by
// Config.MaxListLength and is otherwise only a size hint.
//
// WazeroMemory adapts a wazero memory, and BumpAllocator serves allocations
// from it for hosts that do not call into a guest allocator.
package abi
