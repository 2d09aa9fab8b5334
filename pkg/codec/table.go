package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// TableKind is the kind name of the string table codec.
const TableKind = "table"

// Table is an ordered key=value string table.
type Table struct {
	keys   []string
	values map[string]string
}

// NewTableCanvas creates an empty table.
func NewTableCanvas() *Table {
	return &Table{values: make(map[string]string)}
}

// Set stores value under key. New keys are appended; existing keys keep
// their position.
func (t *Table) Set(key, value string) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get returns the value stored under key.
func (t *Table) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the keys in table order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.keys)
}

// TableCodec composes string tables from text fragments. Each non-empty line
// that does not start with '#' is "key=value"; later sources override
// earlier values.
type TableCodec struct{}

// NewTable creates the table codec.
func NewTable() Codec {
	return TableCodec{}
}

// Kind implements Codec.
func (TableCodec) Kind() string { return TableKind }

// Decode implements Codec.
func (TableCodec) Decode(data []byte) (Canvas, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	t := NewTableCanvas()
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("decode table: line %d: expected key=value", n)
		}
		t.Set(key, strings.TrimSpace(value))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	return t, nil
}

// Blank implements Codec. Tables have no dimensions; the result is empty.
func (TableCodec) Blank(int, int) (Canvas, error) {
	return NewTableCanvas(), nil
}

// Compose implements Codec.
func (TableCodec) Compose(dst, src Canvas, p Placement) (Canvas, error) {
	d, ok := dst.(*Table)
	if !ok {
		return nil, canvasTypeError(TableKind, dst)
	}
	s, ok := src.(*Table)
	if !ok {
		return nil, canvasTypeError(TableKind, src)
	}

	first := max(p.FirstLine, 0)
	if first > s.Len() {
		return nil, fmt.Errorf("%w: first line %d of %d entries", ErrOutOfBounds, first, s.Len())
	}
	last := s.Len()
	if p.LineCount > 0 {
		last = min(first+p.LineCount, s.Len())
	}

	for _, k := range s.keys[first:last] {
		d.Set(p.Prefix+k, s.values[k])
	}
	return d, nil
}

// Encode implements Codec.
func (TableCodec) Encode(c Canvas) ([]byte, error) {
	t, ok := c.(*Table)
	if !ok {
		return nil, canvasTypeError(TableKind, c)
	}
	var buf bytes.Buffer
	for _, k := range t.keys {
		fmt.Fprintf(&buf, "%s=%s\n", k, t.values[k])
	}
	return buf.Bytes(), nil
}
