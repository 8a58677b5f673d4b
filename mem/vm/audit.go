package vm

import "fmt"

// A SharingViolation describes a frame that is shared while at least one of
// its mappings still allows a plain write.
type SharingViolation struct {
	PPN     uint64
	Mapping Mapping
	Flags   PTE
	Refs    int
}

func (v *SharingViolation) Error() string {
	return fmt.Sprintf(
		"frame %d is shared by %d mappings but mapped %s at pid %d va 0x%x",
		v.PPN, v.Refs, v.Flags, v.Mapping.PID, v.Mapping.VAddr)
}

// AuditSharing checks that no frame referenced by more than one mapping is
// mapped writable without the copy-on-write flag.
func AuditSharing(pt PageTable, pool *FramePool) error {
	for _, f := range pool.Frames() {
		if f.RefCount() < 2 {
			continue
		}

		for _, m := range f.Refs() {
			page, ok := pt.Find(m.PID, m.VAddr)
			if !ok {
				panic("frame reference without a mapping")
			}

			if page.Flags.HasFlags(PTEWritable) &&
				!page.Flags.HasFlags(PTECOW) {
				return &SharingViolation{
					PPN:     f.PPN,
					Mapping: m,
					Flags:   page.Flags,
					Refs:    f.RefCount(),
				}
			}
		}
	}

	return nil
}
