package vm

// Log2PageSize is the only page size the simulated machine supports.
const Log2PageSize = 12

// Address space layout shared by the kernel and user environments.
const (
	PageSize uint64 = 1 << Log2PageSize

	// PTSize is the number of bytes mapped by one page table.
	PTSize = 1024 * PageSize

	// UTEMP is a scratch area the kernel and user library may map pages at.
	UTEMP uint64 = PTSize

	// PFTEMP is where the page fault handler builds a private copy.
	PFTEMP = UTEMP + PTSize - PageSize

	// UTEXT is where program text and data begin.
	UTEXT = 2 * PTSize

	// UTOP is the top of user-accessible memory.
	UTOP uint64 = 0xeec00000

	// UXSTACKTOP is the top of the one-page user exception stack.
	UXSTACKTOP = UTOP

	// USTACKTOP is the top of the normal user stack. One invalid page
	// guards it from the exception stack.
	USTACKTOP = UTOP - 2*PageSize
)

// PageNum returns the virtual page number of an address.
func PageNum(va uint64) uint64 {
	return va >> Log2PageSize
}

// RoundDown aligns an address to the start of its page.
func RoundDown(va uint64) uint64 {
	return (va >> Log2PageSize) << Log2PageSize
}

// PageAligned tells if va is the first address of a page.
func PageAligned(va uint64) bool {
	return va&(PageSize-1) == 0
}
