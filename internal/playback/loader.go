package playback

import "context"

type Source struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// Metadata is what a Loader learns about a source. Duration is 0 for still images.
type Metadata struct {
	Duration  float64 `json:"duration"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
}

// Loader acquires source metadata. Implementations should honour ctx
// cancellation; failures are best reported as *MediaError.
type Loader interface {
	Load(ctx context.Context, src Source) (Metadata, error)
}

type LoaderFunc func(ctx context.Context, src Source) (Metadata, error)

func (f LoaderFunc) Load(ctx context.Context, src Source) (Metadata, error) {
	return f(ctx, src)
}
