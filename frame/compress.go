package frame

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm a frame's payload is compressed with.
// Values are stored in frame headers; changing them breaks stream compatibility.
type Compression uint8

const (
	// None stores the payload as is.
	None Compression = 0

	// LZ4 is LZ4 block compression. Fast, with modest ratios.
	LZ4 Compression = 1

	// Zstd is zstd at the default level. Better ratios at more CPU cost.
	Zstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a Compression from its name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

func (c Compression) valid() bool {
	return c <= Zstd
}

// zstd.Encoder is safe for concurrent use through EncodeAll.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("frame: zstd encoder initialization failed: " + err.Error())
	}
}

// newZstdDecoder returns a decoder that refuses to produce more than maxSize bytes.
// Decoders are per Reader, as the limit is.
func newZstdDecoder(maxSize int) (*zstd.Decoder, error) {
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(maxSize)),
	)
}

// errIncompressible is returned when compressing does not make the data smaller.
// The frame is then written uncompressed.
var errIncompressible = errors.New("data is incompressible")

// compress appends data compressed with c to dst.
func compress(dst, data []byte, c Compression) ([]byte, error) {
	switch c {
	case None:
		return append(dst, data...), nil

	case LZ4:
		l := len(dst)
		dst = grow(dst, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, dst[l:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock writes nothing for incompressible data.
		if written == 0 || written >= len(data) {
			return dst[:l], errIncompressible
		}
		return dst[:l+written], nil

	case Zstd:
		l := len(dst)
		dst = zstdEncoder.EncodeAll(data, dst)
		if len(dst)-l >= len(data) {
			return dst[:l], errIncompressible
		}
		return dst, nil

	default:
		return nil, fmt.Errorf("unsupported compression %v", c)
	}
}

// decompress decompresses payload into dst, which is overwritten.
// The result must be exactly rawLen bytes. zstdDecoder supplies the decoder for Zstd payloads, which bounds their output.
func decompress(dst, payload []byte, c Compression, rawLen int, zstdDecoder func() (*zstd.Decoder, error)) ([]byte, error) {
	switch c {
	case None:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("uncompressed payload of %d bytes, expected %d", len(payload), rawLen)
		}
		return append(dst[:0], payload...), nil

	case LZ4:
		dst = grow(dst[:0], rawLen)
		read, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != rawLen {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, rawLen)
		}
		return dst, nil

	case Zstd:
		// Frames declaring their size are checked before anything is decoded.
		var header zstd.Header
		if err := header.Decode(payload); err != nil {
			return nil, fmt.Errorf("zstd header: %w", err)
		}
		if header.HasFCS && header.FrameContentSize != uint64(rawLen) {
			return nil, fmt.Errorf("zstd frame holds %d bytes, expected %d", header.FrameContentSize, rawLen)
		}

		zd, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		result, err := zd.DecodeAll(payload, grow(dst[:0], rawLen)[:0])
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != rawLen {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), rawLen)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression %v", c)
	}
}

// grow extends b by n bytes.
func grow(b []byte, n int) []byte {
	l := len(b)
	if cap(b)-l >= n {
		return b[:l+n]
	}
	nb := make([]byte, l+n, cap(b)*2+n)
	copy(nb, b)
	return nb
}
