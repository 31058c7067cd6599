// Package atone provides a growable sequence container and the small
// serialization protocol that lets it be encoded to, and decoded from, any
// sequence-shaped format.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	atone/                 Root package with the Serializer/Deserializer protocol
//	├── vc/                The Vc container and its sequence adapter
//	├── errors/            Structured error types for debugging
//	├── internal/scalar/   Scalar element conversion shared by formats
//	├── format/tokens/     Token stream format for tests and inspection
//	├── format/json/       JSON arrays (json-iterator)
//	├── format/wire/       Tagged binary format (protowire)
//	├── format/cbor/       CBOR arrays (fxamacker/cbor)
//	├── format/abi/        Canonical ABI lists in WASM linear memory (wazero)
//	├── format/redislist/  Redis LIST backed sequences (go-redis)
//	└── cmd/vcconv/        Sequence conversion CLI
//
// # Quick Start
//
//	v := vc.New[uint32]()
//	v.Push(1)
//	v.Push(2)
//
//	data, err := json.Marshal(v) // [1,2]
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := vc.Decode[uint32](json.NewDeserializer(data))
//
// # Protocol
//
// A format implements Serializer to receive sequences and Deserializer to
// produce them. Elements are passed as pointers; elements that are
// themselves Serializable or Deserializable (for example a nested *vc.Vc)
// are handed a nested Serializer or Deserializer positioned on them.
//
// # Size Hints
//
// Decoding sources may report how many elements remain. The hint can be
// wrong or hostile, so it is never used for allocation directly: see
// CautiousSizeHint and MaxPreallocElements.
//
// # In-place Decoding
//
// DeserializeInPlace reuses an existing container's elements. If an element
// fails to decode, the container is left partially overwritten; callers that
// need all-or-nothing semantics must decode into a fresh container.
//
// # Thread Safety
//
// Serializers, Deserializers and containers are NOT safe for concurrent use.
// A container must not be read or written by anyone else while it is being
// encoded or decoded.
package atone
