package emitter

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
)

const (
	HashBlake3    = "blake3"
	HashXXH3      = "xxh3"
	HashCRC64NVME = "crc64nvme"

	DigestHex    = "hex"
	DigestBase58 = "base58"

	DefaultHashDigestLength = 20
)

// Hasher computes the content digest substituted for [hash] and [contenthash].
type Hasher struct {
	function string
	digest   string
}

// NewHasher validates the hash function and digest names. Empty values select
// blake3 and hex.
func NewHasher(function, digest string) (*Hasher, error) {
	if function == "" {
		function = HashBlake3
	}
	if digest == "" {
		digest = DigestHex
	}

	switch function {
	case HashBlake3, HashXXH3, HashCRC64NVME:
	default:
		return nil, module.NewConfigurationError("output.hashFunction", function, "must be blake3, xxh3 or crc64nvme")
	}

	switch digest {
	case DigestHex, DigestBase58:
	default:
		return nil, module.NewConfigurationError("output.hashDigest", digest, "must be hex or base58")
	}

	return &Hasher{function: function, digest: digest}, nil
}

// Sum returns the full encoded digest of content.
func (h *Hasher) Sum(content []byte) string {
	var sum []byte
	switch h.function {
	case HashXXH3:
		sum = binary.BigEndian.AppendUint64(nil, xxh3.Hash(content))
	case HashCRC64NVME:
		c := crc64nvme.New()
		_, _ = c.Write(content)
		sum = c.Sum(nil)
	default:
		s := blake3.Sum256(content)
		sum = s[:]
	}

	if h.digest == DigestBase58 {
		return base58.Encode(sum)
	}
	return hex.EncodeToString(sum)
}
