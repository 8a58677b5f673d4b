package vm

import "strings"

// PTE is the set of protection and ownership flags of a page table entry.
type PTE uint32

// Page table entry flags.
const (
	PTEPresent  PTE = 0x001
	PTEWritable PTE = 0x002
	PTEUser     PTE = 0x004

	// PTEAvail are the bits the hardware leaves to software.
	PTEAvail PTE = 0xE00

	// PTECOW marks a copy-on-write mapping. It lives in PTEAvail.
	PTECOW PTE = 0x800

	// PTESyscall are the only bits a user environment may pass to a page
	// mapping system call.
	PTESyscall = PTEPresent | PTEWritable | PTEUser | PTEAvail
)

// HasFlags returns true if the entry has all the input flags set.
func (p PTE) HasFlags(flags PTE) bool {
	return p&flags == flags
}

// HasAnyFlag returns true if the entry has at least one of the input flags
// set.
func (p PTE) HasAnyFlag(flags PTE) bool {
	return p&flags != 0
}

func (p PTE) String() string {
	var b strings.Builder

	for _, f := range []struct {
		flag PTE
		c    byte
	}{
		{PTECOW, 'C'},
		{PTEUser, 'U'},
		{PTEWritable, 'W'},
		{PTEPresent, 'P'},
	} {
		if p.HasFlags(f.flag) {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}

	return b.String()
}

// Fault error code bits, as reported by the MMU in a trap frame.
const (
	// FECPresent is set for a protection violation and clear for a fault on
	// a non-present page.
	FECPresent uint32 = 0x1
	FECWrite   uint32 = 0x2
	FECUser    uint32 = 0x4
)

// DescribeFault returns a human readable reason for a fault error code.
func DescribeFault(err uint32) string {
	access := "read"
	if err&FECWrite != 0 {
		access = "write"
	}

	if err&FECPresent == 0 {
		return access + " from non-present page"
	}

	return "page protection violation (" + access + ")"
}
