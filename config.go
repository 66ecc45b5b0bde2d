package bitshape

import (
	"github.com/stewi1014/bitshape/cache"
	"github.com/stewi1014/bitshape/frame"
)

// Config defines configuration for Encoders and Decoders.
// The zero value, or a nil *Config, is usable.
type Config struct {
	// Cache is where codecs are found. If nil, cache.Default is used.
	Cache *cache.Cache

	// Compression is the algorithm Encoders compress frames with. Decoders accept any.
	Compression frame.Compression

	// Checksum is the hash Encoders protect frames with. Decoders accept any.
	Checksum frame.Checksum

	// MaxFrameSize limits the size of frames. If 0, encio.TooBig is used.
	MaxFrameSize int
}

func (c *Config) copyAndFill() *Config {
	config := new(Config)
	if c != nil {
		*config = *c
	}

	if config.Cache == nil {
		config.Cache = cache.Default
	}

	return config
}

func (c *Config) frameOptions() frame.Options {
	return frame.Options{
		Compression:  c.Compression,
		Checksum:     c.Checksum,
		MaxFrameSize: c.MaxFrameSize,
	}
}
