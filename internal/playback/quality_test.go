package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxQuality(t *testing.T) {
	tests := []struct {
		height int
		want   Quality
	}{
		{height: 2160, want: Quality1080},
		{height: 1080, want: Quality1080},
		{height: 1079, want: Quality720},
		{height: 720, want: Quality720},
		{height: 540, want: Quality540},
		{height: 539, want: Quality360},
		{height: 0, want: Quality360},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxQuality(tt.height), "height %d", tt.height)
	}
}

func TestAvailableQualities(t *testing.T) {
	assert.Equal(t, []Quality{Quality1080, Quality720, Quality540, Quality360}, AvailableQualities(Quality1080))
	assert.Equal(t, []Quality{Quality540, Quality360}, AvailableQualities(Quality540))
	assert.Equal(t, []Quality{Quality360}, AvailableQualities(Quality360))
	assert.Equal(t, "720p", Quality720.String())
}
