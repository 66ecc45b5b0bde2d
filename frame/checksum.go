package frame

import (
	"fmt"
	"hash"
	"hash/crc32"

	"github.com/zeebo/blake3"
)

// Checksum identifies the hash protecting a frame.
// Values are stored in frame headers; changing them breaks stream compatibility.
type Checksum uint8

const (
	// CRC32 is the IEEE CRC-32. It catches transmission errors, not tampering.
	CRC32 Checksum = 0

	// Blake3 is a 32 byte BLAKE3 hash.
	Blake3 Checksum = 1
)

func (c Checksum) String() string {
	switch c {
	case CRC32:
		return "crc32"
	case Blake3:
		return "blake3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseChecksum parses a Checksum from its name.
func ParseChecksum(name string) (Checksum, error) {
	switch name {
	case "crc32", "":
		return CRC32, nil
	case "blake3":
		return Blake3, nil
	default:
		return 0, fmt.Errorf("unknown checksum %q", name)
	}
}

// Size returns the number of bytes the checksum occupies in a frame.
func (c Checksum) Size() int {
	switch c {
	case CRC32:
		return crc32.Size
	case Blake3:
		return 32
	default:
		return 0
	}
}

func (c Checksum) valid() bool {
	return c <= Blake3
}

func (c Checksum) newHash() hash.Hash {
	switch c {
	case Blake3:
		return blake3.New()
	default:
		return crc32.NewIEEE()
	}
}
