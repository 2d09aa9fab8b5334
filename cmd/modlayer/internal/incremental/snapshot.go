package incremental

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// SnapshotMagic tags the snapshot format ("MODLDB" + format version 1).
// Any change to the layout must change this value so old snapshots are
// discarded instead of misread.
const SnapshotMagic uint64 = 0x010042444c444f4d

// maxFieldLen bounds a single path/name/metadata field so a garbled length
// cannot trigger a huge allocation.
const maxFieldLen = 64 << 20

var (
	// ErrFormatMismatch is returned when a snapshot carries a different format tag.
	ErrFormatMismatch = errors.New("snapshot format mismatch")

	// ErrCorruptSnapshot is returned when a snapshot cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// Snapshot is the persisted state of one tracked root.
type Snapshot struct {
	Enabled  bool
	Files    []ItemDescriptor
	Folders  []ItemDescriptor
	Settings []Setting
	Metadata []byte
}

// sort orders all lists for deterministic output.
func (s *Snapshot) sort() {
	byPath := func(a, b ItemDescriptor) int { return strings.Compare(a.Path, b.Path) }
	slices.SortFunc(s.Files, byPath)
	slices.SortFunc(s.Folders, byPath)
	slices.SortFunc(s.Settings, func(a, b Setting) int { return strings.Compare(a.Name, b.Name) })
}

// Encode serializes the snapshot:
//
//	u64 magic | u8 enabled
//	u32 files   { u32 len | path | i64 mtime }
//	u32 folders { u32 len | path | i64 mtime }
//	u32 settings { u32 len | name | u8 value }
//	u32 len | metadata
//
// All integers are little-endian.
func (s *Snapshot) Encode() []byte {
	s.sort()

	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	str := func(v string) {
		w(uint32(len(v)))
		buf.WriteString(v)
	}

	w(SnapshotMagic)
	w(boolByte(s.Enabled))

	for _, items := range [][]ItemDescriptor{s.Files, s.Folders} {
		w(uint32(len(items)))
		for _, it := range items {
			str(it.Path)
			w(it.ModTime)
		}
	}

	w(uint32(len(s.Settings)))
	for _, st := range s.Settings {
		str(st.Name)
		w(boolByte(st.Value))
	}

	w(uint32(len(s.Metadata)))
	buf.Write(s.Metadata)

	return buf.Bytes()
}

// DecodeSnapshot parses data produced by Encode.
// A wrong format tag yields ErrFormatMismatch; anything else that does not
// parse cleanly yields ErrCorruptSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	d := decoder{r: bytes.NewReader(data)}

	var magic uint64
	if !d.read(&magic) {
		return nil, fmt.Errorf("%w: missing format tag", ErrCorruptSnapshot)
	}
	if magic != SnapshotMagic {
		return nil, fmt.Errorf("%w: got %#x, want %#x", ErrFormatMismatch, magic, SnapshotMagic)
	}

	s := &Snapshot{}
	s.Enabled = d.bool()
	s.Files = d.items()
	s.Folders = d.items()

	n := d.count()
	for i := uint32(0); i < n && d.err == nil; i++ {
		name := d.str()
		s.Settings = append(s.Settings, Setting{Name: name, Value: d.bool()})
	}

	if meta := d.bytes(); len(meta) > 0 {
		s.Metadata = meta
	}

	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, d.err)
	}
	if d.r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptSnapshot, d.r.Len())
	}
	return s, nil
}

// decoder reads fields until the first error, after which every read is a no-op.
type decoder struct {
	r   *bytes.Reader
	err error
}

func (d *decoder) read(v any) bool {
	if d.err != nil {
		return false
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = err
		return false
	}
	return true
}

func (d *decoder) bool() bool {
	var b uint8
	if !d.read(&b) {
		return false
	}
	if b > 1 {
		d.err = fmt.Errorf("invalid bool byte %d", b)
		return false
	}
	return b == 1
}

func (d *decoder) count() uint32 {
	var n uint32
	d.read(&n)
	return n
}

func (d *decoder) bytes() []byte {
	n := d.count()
	if d.err != nil {
		return nil
	}
	if n > maxFieldLen || int(n) > d.r.Len() {
		d.err = fmt.Errorf("field length %d exceeds remaining %d bytes", n, d.r.Len())
		return nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(d.r, out); err != nil {
		d.err = err
		return nil
	}
	return out
}

func (d *decoder) str() string {
	return string(d.bytes())
}

func (d *decoder) items() []ItemDescriptor {
	n := d.count()
	var out []ItemDescriptor
	for i := uint32(0); i < n && d.err == nil; i++ {
		p := d.str()
		var mt int64
		d.read(&mt)
		out = append(out, ItemDescriptor{Path: p, ModTime: mt})
	}
	return out
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
