package artifact

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/overlay"
	"github.com/albertocavalcante/modlayer/pkg/codec"
)

// DefaultCacheSize is the default number of decoded sources kept in memory.
const DefaultCacheSize = 256

// sourceCache keeps decoded sources keyed by kind, concrete path, mtime and
// size, so unchanged files are not decoded again across passes. Cached
// canvases are only ever used as composition sources, never as destinations.
type sourceCache struct {
	lru    *lru.Cache[uint64, codec.Canvas]
	hits   int
	misses int
}

func newSourceCache(size int) *sourceCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[uint64, codec.Canvas](size)
	if err != nil {
		// Only possible for a non-positive size.
		panic(err)
	}
	return &sourceCache{lru: c}
}

// load returns the decoded canvas for loc, decoding on a miss.
func (c *sourceCache) load(cd codec.Codec, loc overlay.Location) (codec.Canvas, error) {
	info, err := loc.Stat()
	if err != nil {
		return nil, err
	}

	d := xxhash.New()
	_, _ = d.WriteString(cd.Kind())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(loc.Concrete())
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(info.ModTime().UnixNano()))
	binary.LittleEndian.PutUint64(buf[8:], uint64(info.Size()))
	_, _ = d.Write(buf[:])
	key := d.Sum64()

	if cv, ok := c.lru.Get(key); ok {
		c.hits++
		return cv, nil
	}

	data, err := loc.ReadFile()
	if err != nil {
		return nil, err
	}
	cv, err := cd.Decode(data)
	if err != nil {
		return nil, err
	}
	c.misses++
	c.lru.Add(key, cv)
	return cv, nil
}

func (c *sourceCache) purge() {
	c.lru.Purge()
}
