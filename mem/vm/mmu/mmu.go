// Package mmu translates user accesses through a page table and raises page
// faults the way the simulated hardware does.
package mmu

import (
	"fmt"

	"github.com/sarchlab/exokern/mem/vm"
)

// Access is the kind of memory access being translated.
type Access int

// Access kinds.
const (
	Read Access = iota
	Write
)

// A Fault is raised when an access cannot be translated. Err holds the fault
// error code bits (vm.FECPresent, vm.FECWrite, vm.FECUser).
type Fault struct {
	PID   vm.PID
	VAddr uint64
	Err   uint32
}

func (f *Fault) Error() string {
	return fmt.Sprintf("page fault at va 0x%x in pid %d: %s",
		f.VAddr, f.PID, vm.DescribeFault(f.Err))
}

// MMU is a user-mode memory management unit.
type MMU struct {
	pageTable    vm.PageTable
	log2PageSize uint64
}

// PageTable returns the page table the MMU walks.
func (m *MMU) PageTable() vm.PageTable {
	return m.pageTable
}

// Translate walks the page table for a user access. It returns the page that
// backs vAddr, or the fault the access raises.
func (m *MMU) Translate(pid vm.PID, vAddr uint64, access Access) (vm.Page, *Fault) {
	errCode := vm.FECUser
	if access == Write {
		errCode |= vm.FECWrite
	}

	page, found := m.pageTable.Find(pid, vAddr)
	if !found || !page.Flags.HasFlags(vm.PTEPresent) {
		return vm.Page{}, &Fault{PID: pid, VAddr: vAddr, Err: errCode}
	}

	if !page.Flags.HasFlags(vm.PTEUser) {
		return vm.Page{}, &Fault{
			PID: pid, VAddr: vAddr, Err: errCode | vm.FECPresent}
	}

	if access == Write && !page.Flags.HasFlags(vm.PTEWritable) {
		return vm.Page{}, &Fault{
			PID: pid, VAddr: vAddr, Err: errCode | vm.FECPresent}
	}

	return page, nil
}

// Read copies len(buf) bytes starting at vAddr into buf. No byte is copied
// if any page of the range faults.
func (m *MMU) Read(pid vm.PID, vAddr uint64, buf []byte) error {
	pages, fault := m.translateRange(pid, vAddr, uint64(len(buf)), Read)
	if fault != nil {
		return fault
	}

	m.forEachChunk(vAddr, uint64(len(buf)), func(i int, off, n, done uint64) {
		copy(buf[done:done+n], pages[i].Frame.Data[off:off+n])
	})

	return nil
}

// Write copies data to vAddr. No byte is written if any page of the range
// faults.
func (m *MMU) Write(pid vm.PID, vAddr uint64, data []byte) error {
	pages, fault := m.translateRange(pid, vAddr, uint64(len(data)), Write)
	if fault != nil {
		return fault
	}

	m.forEachChunk(vAddr, uint64(len(data)), func(i int, off, n, done uint64) {
		copy(pages[i].Frame.Data[off:off+n], data[done:done+n])
	})

	return nil
}

func (m *MMU) translateRange(
	pid vm.PID,
	vAddr, size uint64,
	access Access,
) ([]vm.Page, *Fault) {
	var (
		pages []vm.Page
		fault *Fault
	)

	m.forEachChunk(vAddr, size, func(_ int, _, _, done uint64) {
		if fault != nil {
			return
		}

		var page vm.Page
		page, fault = m.Translate(pid, vAddr+done, access)
		pages = append(pages, page)
	})

	return pages, fault
}

// forEachChunk splits [vAddr, vAddr+size) at page boundaries. For chunk i it
// passes the offset inside the page, the chunk length and the number of bytes
// before the chunk.
func (m *MMU) forEachChunk(
	vAddr, size uint64,
	f func(i int, off, n, done uint64),
) {
	pageSize := uint64(1) << m.log2PageSize
	done := uint64(0)

	for i := 0; done < size; i++ {
		off := (vAddr + done) & (pageSize - 1)
		n := min(pageSize-off, size-done)
		f(i, off, n, done)
		done += n
	}
}
