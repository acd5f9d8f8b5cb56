package module

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sized(n int) *AssetModule {
	return New("file.bin", make([]byte, n), TypeAsset)
}

func TestDataURLConditionDefault(t *testing.T) {
	c := DefaultDataURLCondition()

	tests := []struct {
		size   int
		inline bool
	}{
		{size: 0, inline: true},
		{size: 1, inline: true},
		{size: 8191, inline: true},
		{size: 8192, inline: false},
		{size: 8193, inline: false},
		{size: 1 << 20, inline: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.inline, c.ShouldInline(sized(tt.size)), "size %d", tt.size)
	}
}

func TestDataURLConditionMaxSize(t *testing.T) {
	file := sized(5000)

	assert.True(t, DefaultDataURLCondition().ShouldInline(file))
	assert.False(t, DataURLCondition{MaxSize: 4096}.ShouldInline(file))
	assert.False(t, DataURLCondition{}.ShouldInline(sized(0)), "zero max size never inlines")
}

func TestDataURLConditionPredicate(t *testing.T) {
	c := DataURLCondition{
		MaxSize: 1,
		Predicate: func(m *AssetModule) bool {
			return strings.HasSuffix(m.Path, ".svg")
		},
	}

	assert.True(t, c.ShouldInline(New("icon.svg", make([]byte, 100000), TypeAsset)))
	assert.False(t, c.ShouldInline(New("photo.png", nil, TypeAsset)))
}
