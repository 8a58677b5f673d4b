package vm

// A View is a read-only window onto the page table of one address space,
// indexed by virtual page number.
type View interface {
	Lookup(pageNum uint64) (PTE, bool)
}

// NewView returns a View of pid's address space in pt.
func NewView(pt PageTable, pid PID) View {
	return tableView{pt: pt, pid: pid}
}

type tableView struct {
	pt  PageTable
	pid PID
}

func (v tableView) Lookup(pageNum uint64) (PTE, bool) {
	page, ok := v.pt.Find(v.pid, pageNum<<v.pt.Log2PageSize())
	if !ok {
		return 0, false
	}

	return page.Flags, true
}
