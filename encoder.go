package bitshape

import (
	"io"
	"sync"

	"github.com/stewi1014/bitshape/frame"
)

// NewEncoder returns a new Encoder writing to w.
// If config is nil, defaults are used.
func NewEncoder(w io.Writer, config *Config) *Encoder {
	config = config.copyAndFill()
	return &Encoder{
		config: config,
		w:      frame.NewWriter(w, config.frameOptions()),
	}
}

// Encoder writes encoded values to a stream, one frame per value.
// It is safe for concurrent use.
type Encoder struct {
	config *Config
	mutex  sync.Mutex
	w      *frame.Writer
	buff   []byte
}

// Encode encodes v and writes it as a single frame.
// v may be a value or a pointer to one.
func (e *Encoder) Encode(v any) error {
	cd, ptr := source(e.config.Cache, v)

	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.buff = cd.EncodeOne(ptr, e.buff[:0])
	return e.w.WriteFrame(e.buff)
}
