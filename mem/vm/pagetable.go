package vm

import (
	"container/list"
	"sort"
	"sync"
)

// A Page is an entry in the page table. It binds a virtual page of one
// address space to a physical frame with a set of flags.
type Page struct {
	PID   PID
	VAddr uint64
	Frame *Frame
	Flags PTE
}

// A PageTable holds the mappings of every address space.
type PageTable interface {
	// Insert installs page, replacing any mapping at the same address. The
	// frame reference moves from the old frame to the new one.
	Insert(page Page)

	// Remove removes the mapping that contains vAddr. The page must exist.
	Remove(pid PID, vAddr uint64)

	// Find returns the page that contains the given virtual address.
	Find(pid PID, vAddr uint64) (Page, bool)

	// Update changes the flags of an existing page. The PID and the VAddr
	// field locate the page to update. The frame must not change.
	Update(page Page)

	// Pages returns all the pages of an address space, ordered by address.
	Pages(pid PID) []Page

	// RemoveAll tears down an address space.
	RemoveAll(pid PID)

	// Log2PageSize returns the page size the table is built for.
	Log2PageSize() uint64
}

// NewPageTable creates a new PageTable whose frame references are kept in
// pool.
func NewPageTable(log2PageSize uint64, pool *FramePool) PageTable {
	return &pageTableImpl{
		log2PageSize: log2PageSize,
		pool:         pool,
		tables:       make(map[PID]*processTable),
	}
}

type pageTableImpl struct {
	sync.Mutex
	log2PageSize uint64
	pool         *FramePool
	tables       map[PID]*processTable
}

func (pt *pageTableImpl) getTable(pid PID) *processTable {
	pt.Lock()
	defer pt.Unlock()

	table, found := pt.tables[pid]
	if !found {
		table = &processTable{
			entries:      list.New(),
			entriesTable: make(map[uint64]*list.Element),
		}
		pt.tables[pid] = table
	}

	return table
}

func (pt *pageTableImpl) alignToPage(addr uint64) uint64 {
	return (addr >> pt.log2PageSize) << pt.log2PageSize
}

func (pt *pageTableImpl) Log2PageSize() uint64 {
	return pt.log2PageSize
}

func (pt *pageTableImpl) Insert(page Page) {
	if page.Frame == nil {
		panic("inserting a page without a frame")
	}

	page.VAddr = pt.alignToPage(page.VAddr)
	m := Mapping{PID: page.PID, VAddr: page.VAddr}

	table := pt.getTable(page.PID)
	old, replaced := table.insert(page)

	if replaced && old.Frame == page.Frame {
		return
	}

	pt.pool.addRef(page.Frame, m)
	if replaced {
		pt.pool.removeRef(old.Frame, m)
	}
}

func (pt *pageTableImpl) Remove(pid PID, vAddr uint64) {
	vAddr = pt.alignToPage(vAddr)
	table := pt.getTable(pid)
	page := table.remove(vAddr)

	pt.pool.removeRef(page.Frame, Mapping{PID: pid, VAddr: vAddr})
}

func (pt *pageTableImpl) Find(pid PID, vAddr uint64) (Page, bool) {
	table := pt.getTable(pid)
	vAddr = pt.alignToPage(vAddr)
	return table.find(vAddr)
}

func (pt *pageTableImpl) Update(page Page) {
	table := pt.getTable(page.PID)
	table.update(page)
}

func (pt *pageTableImpl) Pages(pid PID) []Page {
	table := pt.getTable(pid)
	return table.pages()
}

func (pt *pageTableImpl) RemoveAll(pid PID) {
	for _, page := range pt.Pages(pid) {
		pt.Remove(pid, page.VAddr)
	}

	pt.Lock()
	delete(pt.tables, pid)
	pt.Unlock()
}

// processTable holds the mappings of one address space. The list keeps
// insertion order and the map gives direct lookup by address.
type processTable struct {
	sync.Mutex
	entries      *list.List
	entriesTable map[uint64]*list.Element
}

func (t *processTable) insert(page Page) (old Page, replaced bool) {
	t.Lock()
	defer t.Unlock()

	if elem, found := t.entriesTable[page.VAddr]; found {
		old = elem.Value.(Page)
		elem.Value = page
		return old, true
	}

	elem := t.entries.PushBack(page)
	t.entriesTable[page.VAddr] = elem

	return Page{}, false
}

func (t *processTable) remove(vAddr uint64) Page {
	t.Lock()
	defer t.Unlock()

	t.pageMustExist(vAddr)

	elem := t.entriesTable[vAddr]
	t.entries.Remove(elem)
	delete(t.entriesTable, vAddr)

	return elem.Value.(Page)
}

func (t *processTable) update(page Page) {
	t.Lock()
	defer t.Unlock()

	t.pageMustExist(page.VAddr)

	elem := t.entriesTable[page.VAddr]
	if elem.Value.(Page).Frame != page.Frame {
		panic("update must not change the frame of a page")
	}

	elem.Value = page
}

func (t *processTable) find(vAddr uint64) (Page, bool) {
	t.Lock()
	defer t.Unlock()

	elem, found := t.entriesTable[vAddr]
	if found {
		return elem.Value.(Page), true
	}

	return Page{}, false
}

func (t *processTable) pages() []Page {
	t.Lock()
	defer t.Unlock()

	pages := make([]Page, 0, t.entries.Len())
	for e := t.entries.Front(); e != nil; e = e.Next() {
		pages = append(pages, e.Value.(Page))
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].VAddr < pages[j].VAddr
	})

	return pages
}

func (t *processTable) pageMustExist(vAddr uint64) {
	_, found := t.entriesTable[vAddr]
	if !found {
		panic("page does not exist")
	}
}
