package abi

import (
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/atone/errors"
)

const pageSize = 65536

// BumpAllocator hands out linear memory from a moving offset, growing the
// wazero memory by whole pages when it runs out. Free only reclaims the most
// recent allocation; Rewind releases everything after a Mark.
type BumpAllocator struct {
	mem  api.Memory
	next uint32
}

// NewBumpAllocator allocates from mem starting at base.
func NewBumpAllocator(mem api.Memory, base uint32) *BumpAllocator {
	return &BumpAllocator{mem: mem, next: base}
}

// Offset returns where the next allocation would start before alignment.
func (a *BumpAllocator) Offset() uint32 {
	return a.next
}

func (a *BumpAllocator) Alloc(size, align uint32) (uint32, error) {
	ptr := alignTo(a.next, align)
	end, ok := safeAddU32(ptr, size)
	if !ok || ptr < a.next || size > MaxAlloc {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align)
	}

	if have := a.mem.Size(); end > have {
		need := (uint64(end) - uint64(have) + pageSize - 1) / pageSize
		prev, ok := a.mem.Grow(uint32(need))
		if !ok {
			Logger().Warn("linear memory growth refused",
				zap.Uint64("pages", need),
				zap.Uint32("size", size))
			return 0, errors.AllocationFailed(errors.PhaseEncode, size, align)
		}
		Logger().Debug("linear memory grown",
			zap.Uint32("from_pages", prev),
			zap.Uint64("by_pages", need))
	}

	a.next = end
	return ptr, nil
}

func (a *BumpAllocator) Free(ptr, size, align uint32) {
	if ptr+size == a.next {
		a.next = ptr
	}
}

// Mark returns the current offset for a later Rewind.
func (a *BumpAllocator) Mark() uint32 {
	return a.next
}

// Rewind releases every allocation made since mark. Marks above the
// current offset are ignored.
func (a *BumpAllocator) Rewind(mark uint32) {
	if mark <= a.next {
		a.next = mark
	}
}

var (
	_ Allocator = (*BumpAllocator)(nil)
	_ Rewinder  = (*BumpAllocator)(nil)
)

// Allocation records one block handed out during encoding.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// AllocationList tracks the blocks of one EncodeList call so they can be
// released if encoding fails part way.
type AllocationList struct {
	allocations []Allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{allocations: make([]Allocation, 0, 8)}
	},
}

func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

const maxPooledAllocationCapacity = 128

// Release returns to pool. Must call after Free(); list invalid after Release.
func (al *AllocationList) Release() {
	if cap(al.allocations) > maxPooledAllocationCapacity {
		return
	}
	al.Reset()
	allocationListPool.Put(al)
}

func (al *AllocationList) Add(ptr, size, align uint32) {
	al.allocations = append(al.allocations, Allocation{Ptr: ptr, Size: size, Align: align})
}

// Free releases every tracked block, newest first so a bump allocator can
// rewind.
func (al *AllocationList) Free(allocator Allocator) {
	if allocator == nil {
		return
	}
	for i := len(al.allocations) - 1; i >= 0; i-- {
		if a := al.allocations[i]; a.Ptr != 0 {
			allocator.Free(a.Ptr, a.Size, a.Align)
		}
	}
}

func (al *AllocationList) Reset() {
	al.allocations = al.allocations[:0]
}

func (al *AllocationList) Count() int {
	return len(al.allocations)
}
