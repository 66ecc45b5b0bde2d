package bitshape

import (
	"io"
	"sync"

	"github.com/stewi1014/bitshape/frame"
)

// NewDecoder returns a new Decoder reading from r.
// If config is nil, defaults are used.
func NewDecoder(r io.Reader, config *Config) *Decoder {
	config = config.copyAndFill()
	return &Decoder{
		config: config,
		r:      frame.NewReader(r, config.frameOptions()),
	}
}

// Decoder reads values written by an Encoder.
// It is safe for concurrent use.
type Decoder struct {
	config *Config
	mutex  sync.Mutex
	r      *frame.Reader
}

// Decode reads the next frame and decodes it into the value ptr points to.
// The frame must hold exactly one value of that type.
// io.EOF is returned when the stream ends between frames.
func (d *Decoder) Decode(ptr any) error {
	ty, p := target(ptr)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	raw, err := d.r.ReadFrame()
	if err != nil {
		return err
	}
	return deserialize(d.config.Cache, raw, ty, p)
}
