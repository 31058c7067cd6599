package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/format/abi"
)

// memoryModule exports one page of growable memory as "memory".
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

const heapBase = 16

// loweredList is a list written into a scratch linear memory.
type loweredList struct {
	typeName string
	ptr      uint32
	length   uint32
	heap     []byte // memory from heapBase to the allocator offset
}

func (l loweredList) String() string {
	return fmt.Sprintf("%s ptr=%d len=%d\n%s", l.typeName, l.ptr, l.length, hex.Dump(l.heap))
}

// lowerABI writes v as a canonical ABI list into a fresh wazero memory.
func lowerABI(ctx context.Context, et elemType, v atone.Serializable) (loweredList, error) {
	if et.abiType == nil {
		return loweredList{}, fmt.Errorf("element type has no canonical ABI form")
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, memoryModule)
	if err != nil {
		return loweredList{}, fmt.Errorf("instantiate scratch memory: %w", err)
	}
	mem := mod.Memory()
	alloc := abi.NewBumpAllocator(mem, heapBase)
	enc := abi.NewEncoder(abi.NewWazeroMemory(mem), alloc, abi.Config{})

	ptr, n, err := enc.EncodeList(et.abiType, v)
	if err != nil {
		return loweredList{}, err
	}
	heap, ok := mem.Read(heapBase, alloc.Offset()-heapBase)
	if !ok {
		return loweredList{}, fmt.Errorf("heap out of range")
	}
	return loweredList{
		typeName: abi.TypeName(abi.ListOf(et.abiType)),
		ptr:      ptr,
		length:   n,
		heap:     append([]byte(nil), heap...),
	}, nil
}
