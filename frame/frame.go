// Package frame carries byte payloads over streams in self-describing frames.
//
// Each frame is laid out as
//
//	[compression u8][checksum u8][raw length u32][payload length u32][checksum sum][payload]
//
// The sum covers the four header fields and the payload. Lengths are little-endian.
package frame

import (
	"errors"
	"fmt"
	"hash"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/stewi1014/bitshape/encio"
	"go.uber.org/zap"
)

// headerSize is the size of the fixed part of a frame header, before the sum.
const headerSize = 10

// Options configures a Writer or Reader.
// The zero value writes uncompressed frames with CRC32 checksums.
type Options struct {
	// Compression is the algorithm frames are written with.
	// Frames that do not shrink are written uncompressed. Readers accept any algorithm.
	Compression Compression

	// Checksum is the hash frames are written with. Readers accept any hash.
	Checksum Checksum

	// MaxFrameSize is the largest raw or compressed payload a Reader will allocate for, or a Writer will write.
	// If 0, encio.TooBig is used.
	MaxFrameSize int
}

func (o Options) fill() Options {
	if !o.Compression.valid() {
		panic(encio.NewError(encio.ErrBadConfig, fmt.Sprintf("compression %v", o.Compression), 2))
	}
	if !o.Checksum.valid() {
		panic(encio.NewError(encio.ErrBadConfig, fmt.Sprintf("checksum %v", o.Checksum), 2))
	}
	if o.MaxFrameSize < 0 {
		panic(encio.NewError(encio.ErrBadConfig, fmt.Sprintf("negative max frame size %v", o.MaxFrameSize), 2))
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = encio.TooBig
	}
	if uint64(o.MaxFrameSize) > math.MaxUint32 {
		o.MaxFrameSize = math.MaxUint32
	}
	return o
}

// NewWriter returns a new Writer writing frames to w.
// It panics with encio.ErrBadConfig if opts names an unknown algorithm.
func NewWriter(w io.Writer, opts Options) *Writer {
	opts = opts.fill()
	return &Writer{
		w:      w,
		opts:   opts,
		hasher: opts.Checksum.newHash(),
	}
}

// Writer writes frames. It is not safe for concurrent use.
type Writer struct {
	w      io.Writer
	opts   Options
	hasher hash.Hash
	buff   []byte
}

// WriteFrame writes raw as a single frame, with a single call to Write on the underlying writer.
func (w *Writer) WriteFrame(raw []byte) error {
	if len(raw) > w.opts.MaxFrameSize {
		return fmt.Errorf("frame of %v bytes exceeds the maximum of %v: %w", len(raw), w.opts.MaxFrameSize, encio.ErrTooBig)
	}

	sumSize := w.opts.Checksum.Size()
	w.buff = grow(w.buff[:0], headerSize+sumSize)

	tag := w.opts.Compression
	buff, err := compress(w.buff, raw, tag)
	switch {
	case errors.Is(err, errIncompressible):
		tag = None
		buff, err = compress(buff, raw, None)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}
	w.buff = buff
	payload := w.buff[headerSize+sumSize:]

	w.buff[0] = byte(tag)
	w.buff[1] = byte(w.opts.Checksum)
	encio.EncodeUint32(w.buff[2:], uint32(len(raw)))
	encio.EncodeUint32(w.buff[6:], uint32(len(payload)))

	w.hasher.Reset()
	w.hasher.Write(w.buff[:headerSize])
	w.hasher.Write(payload)
	// Sum appends, filling the slot reserved after the header.
	w.hasher.Sum(w.buff[headerSize:headerSize])

	Logger().Debug("writing frame",
		zap.Stringer("compression", tag),
		zap.Int("raw", len(raw)),
		zap.Int("payload", len(payload)),
	)

	return encio.Write(w.buff, w.w)
}

// NewReader returns a new Reader reading frames from r.
// Only opts.MaxFrameSize is used; frames describe their own compression and checksum.
func NewReader(r io.Reader, opts Options) *Reader {
	return &Reader{
		r:    r,
		opts: opts.fill(),
	}
}

// Reader reads frames. It is not safe for concurrent use.
type Reader struct {
	r       io.Reader
	opts    Options
	hashers [Blake3 + 1]hash.Hash
	zstd    *zstd.Decoder
	buff    []byte
	raw     []byte
}

// ReadFrame reads the next frame, returning its decompressed payload.
// The returned slice is only valid until the next call to ReadFrame.
//
// io.EOF is returned if the stream ends cleanly between frames, and a wrapped io.ErrUnexpectedEOF if it ends inside one.
// Frames that are corrupt, or claim a size over MaxFrameSize, return a ValidationError wrapping encio.ErrMalformed.
func (r *Reader) ReadFrame() ([]byte, error) {
	r.buff = grow(r.buff[:0], headerSize)
	if err := encio.Read(r.buff, r.r); err != nil {
		return nil, err
	}

	tag := Compression(r.buff[0])
	sum := Checksum(r.buff[1])
	rawLen := int(encio.DecodeUint32(r.buff[2:]))
	payloadLen := int(encio.DecodeUint32(r.buff[6:]))

	switch {
	case !tag.valid():
		return nil, r.malformed(fmt.Sprintf("unknown compression %v", tag))
	case !sum.valid():
		return nil, r.malformed(fmt.Sprintf("unknown checksum %v", sum))
	case rawLen > r.opts.MaxFrameSize || payloadLen > r.opts.MaxFrameSize:
		return nil, r.malformed(fmt.Sprintf("frame of %v bytes, %v compressed, exceeds the maximum of %v", rawLen, payloadLen, r.opts.MaxFrameSize))
	}

	sumSize := sum.Size()
	r.buff = grow(r.buff, sumSize+payloadLen)
	if err := encio.Read(r.buff[headerSize:], r.r); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("frame truncated: %w", io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	payload := r.buff[headerSize+sumSize:]

	hasher := r.hasher(sum)
	hasher.Reset()
	hasher.Write(r.buff[:headerSize])
	hasher.Write(payload)
	var want [32]byte
	got := hasher.Sum(want[:0])
	for i := range got {
		if got[i] != r.buff[headerSize+i] {
			return nil, r.malformed("checksums do not match")
		}
	}

	raw, err := decompress(r.raw, payload, tag, rawLen, r.zstdDecoder)
	if err != nil {
		return nil, r.malformed(err.Error())
	}
	r.raw = raw
	return raw, nil
}

// zstdDecoder returns the Reader's zstd decoder, limited to MaxFrameSize bytes of output.
func (r *Reader) zstdDecoder() (*zstd.Decoder, error) {
	if r.zstd == nil {
		zd, err := newZstdDecoder(r.opts.MaxFrameSize)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		r.zstd = zd
	}
	return r.zstd, nil
}

func (r *Reader) hasher(c Checksum) hash.Hash {
	if r.hashers[c] == nil {
		r.hashers[c] = c.newHash()
	}
	return r.hashers[c]
}

func (r *Reader) malformed(message string) error {
	Logger().Debug("malformed frame", zap.String("reason", message))
	return encio.NewValidationError(encio.ErrMalformed, message)
}
