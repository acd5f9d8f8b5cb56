package emitter

import (
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetmods/internal/module"
)

func TestHasher(t *testing.T) {
	content := []byte("Hello world")

	tests := []struct {
		function string
		bytes    int
	}{
		{function: HashBlake3, bytes: 32},
		{function: HashXXH3, bytes: 8},
		{function: HashCRC64NVME, bytes: 8},
	}

	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			h, err := NewHasher(tt.function, DigestHex)
			require.NoError(t, err)

			sum := h.Sum(content)
			raw, err := hex.DecodeString(sum)
			require.NoError(t, err)
			assert.Len(t, raw, tt.bytes)

			assert.Equal(t, sum, h.Sum(content), "digest must be deterministic")
			assert.NotEqual(t, sum, h.Sum([]byte("Hello world!")))

			b58, err := NewHasher(tt.function, DigestBase58)
			require.NoError(t, err)
			decoded, err := base58.Decode(b58.Sum(content))
			require.NoError(t, err)
			assert.Equal(t, raw, decoded)
		})
	}
}

func TestHasherDefaults(t *testing.T) {
	h, err := NewHasher("", "")
	require.NoError(t, err)
	assert.Len(t, h.Sum(nil), 64)
}

func TestHasherInvalid(t *testing.T) {
	_, err := NewHasher("md4", "")
	assert.ErrorIs(t, err, module.ErrConfiguration)

	_, err = NewHasher("", "base64")
	assert.ErrorIs(t, err, module.ErrConfiguration)
}
