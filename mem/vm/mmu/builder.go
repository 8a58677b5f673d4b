package mmu

import (
	"github.com/sarchlab/exokern/mem/vm"
)

// A Builder can build an MMU.
type Builder struct {
	log2PageSize uint64
	pageTable    vm.PageTable
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		log2PageSize: vm.Log2PageSize,
	}
}

// WithLog2PageSize sets the page size that the mmu support.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithPageTable sets the page table that the MMU uses.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// Build returns a newly created MMU.
func (b Builder) Build() *MMU {
	if b.pageTable == nil {
		panic("mmu requires a page table")
	}

	if b.pageTable.Log2PageSize() != b.log2PageSize {
		panic("page table page size does not match MMU page size")
	}

	return &MMU{
		pageTable:    b.pageTable,
		log2PageSize: b.log2PageSize,
	}
}
