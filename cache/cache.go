// Package cache memoizes codec compilation per type.
//
// A Cache holds at most one codec per type for the life of the process; entries are never evicted.
// Lookups first check a single-entry memo local to the calling P, then the shared table.
package cache

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/stewi1014/bitshape/codec"
	"github.com/stewi1014/bitshape/encio"
	"github.com/stewi1014/bitshape/shape"
	"go.uber.org/zap"
)

// Default is the process-wide Cache.
var Default = New(nil)

// New returns a new, empty Cache compiling codecs with compile.
// If compile is nil, codec.Compile is used.
func New(compile func(*shape.Shape) codec.Codec) *Cache {
	if compile == nil {
		compile = codec.Compile
	}
	return &Cache{
		compile: compile,
	}
}

// Cache maps type IDs to codecs. It is safe for concurrent use.
type Cache struct {
	compile func(*shape.Shape) codec.Codec

	// memo holds *entry values; the last codec returned on a P.
	memo sync.Pool

	mutex   sync.RWMutex
	entries []entry // sorted by id
}

type entry struct {
	id    shape.ID
	codec codec.Codec
}

func compareEntry(e entry, id shape.ID) int {
	return cmp.Compare(e.id, id)
}

// For returns the codec for t, compiling it if this is the first request for t.
// The shape of t is only built when it must be compiled.
func (c *Cache) For(t reflect.Type) codec.Codec {
	if t == nil {
		panic(encio.NewError(encio.ErrNilPointer, "cannot get a codec for a nil type", 1))
	}
	return c.get(shape.TypeID(t), func() *shape.Shape { return shape.Of(t) })
}

// GetOrCompile returns the codec for s.ID, compiling s if there is none.
// Shapes with no ID are compiled every call and never cached.
func (c *Cache) GetOrCompile(s *shape.Shape) codec.Codec {
	if s == nil {
		panic(encio.NewError(encio.ErrNilPointer, "cannot get a codec for a nil shape", 1))
	}
	if s.ID == 0 {
		return c.compile(s)
	}
	return c.get(s.ID, func() *shape.Shape { return s })
}

// Len returns the number of cached codecs.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(id shape.ID, build func() *shape.Shape) codec.Codec {
	m, _ := c.memo.Get().(*entry)
	if m != nil && m.id == id {
		found := m.codec
		c.memo.Put(m)
		return found
	}

	found, ok := c.lookup(id)
	if !ok {
		found = c.insert(id, build())
	}

	if m == nil {
		m = new(entry)
	}
	m.id, m.codec = id, found
	c.memo.Put(m)
	return found
}

func (c *Cache) lookup(id shape.ID) (codec.Codec, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	i, ok := slices.BinarySearchFunc(c.entries, id, compareEntry)
	if !ok {
		return nil, false
	}
	return c.entries[i].codec, true
}

// insert compiles s and stores it under id, unless another caller got there first,
// in which case the stored codec is returned and the new one is dropped.
//
// Compilation runs before the write lock is taken, not under it, so callers racing on a new type
// may each compile it; only one codec is ever stored or returned. Holding no lock while compiling
// lets compile functions use the cache themselves, and keeps a slow compile from blocking lookups.
func (c *Cache) insert(id shape.ID, s *shape.Shape) codec.Codec {
	start := time.Now()
	compiled := c.compile(s)
	took := time.Since(start)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	i, ok := slices.BinarySearchFunc(c.entries, id, compareEntry)
	if ok {
		Logger().Debug("dropped codec compiled concurrently",
			zap.String("type", typeName(s)),
			zap.Uintptr("id", uintptr(id)),
		)
		return c.entries[i].codec
	}

	c.entries = slices.Insert(c.entries, i, entry{id: id, codec: compiled})
	Logger().Debug("compiled codec",
		zap.String("type", typeName(s)),
		zap.Uintptr("id", uintptr(id)),
		zap.Duration("took", took),
		zap.Stringer("codec", stringer(compiled)),
	)
	return compiled
}

func typeName(s *shape.Shape) string {
	if s.Type != nil {
		return s.Type.String()
	}
	return s.String()
}

func stringer(c codec.Codec) fmt.Stringer {
	if s, ok := c.(fmt.Stringer); ok {
		return s
	}
	return codecType{c}
}

type codecType struct{ codec.Codec }

func (c codecType) String() string { return fmt.Sprintf("%T", c.Codec) }
