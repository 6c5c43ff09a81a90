package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func staticLoader(md Metadata) Loader {
	return LoaderFunc(func(context.Context, Source) (Metadata, error) {
		return md, nil
	})
}

func blockingLoader() Loader {
	return LoaderFunc(func(ctx context.Context, _ Source) (Metadata, error) {
		<-ctx.Done()
		return Metadata{}, ctx.Err()
	})
}

func newTestController(t *testing.T, loader Loader) (*Controller, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	c := NewController(Config{Loader: loader, Clock: clock})
	t.Cleanup(c.Close)
	return c, clock
}

func loadReady(t *testing.T, c *Controller, url string) {
	t.Helper()
	require.NoError(t, c.Load(context.Background(), Source{URL: url}))
	require.Eventually(t, func() bool { return c.State().Loaded }, waitFor, tick)
}

func TestController_LoadReady(t *testing.T) {
	c, _ := newTestController(t, staticLoader(Metadata{Duration: 120, Height: 800, FrameRate: 30}))
	loadReady(t, c, "clip.mp4")

	state := c.State()
	assert.Equal(t, StatusReady, state.Status)
	assert.Equal(t, "clip.mp4", state.Source)
	assert.Equal(t, 120.0, state.Duration)
	assert.Equal(t, 30.0, state.FrameRate)
	assert.Equal(t, Quality720, state.MaxQuality)
	assert.Equal(t, []Quality{Quality720, Quality540, Quality360}, state.Qualities)
	assert.Nil(t, state.Error)
	assert.False(t, state.IsPlaying)
	assert.Equal(t, 1.0, state.Volume)
	assert.Equal(t, 1.0, state.Rate)
}

func TestController_WatchdogTimeout(t *testing.T) {
	c, clock := newTestController(t, blockingLoader())
	require.NoError(t, c.Load(context.Background(), Source{URL: "http://unreachable.invalid/clip.mp4"}))

	clock.Advance(DefaultLoadTimeout - time.Millisecond)
	assert.Never(t, func() bool { return c.State().Error != nil }, 50*time.Millisecond, tick)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return c.State().Error != nil }, waitFor, tick)

	state := c.State()
	assert.Equal(t, MediaTimeout, state.Error.Kind)
	assert.True(t, state.Error.Retryable())
	assert.False(t, state.Loaded)
	assert.Equal(t, StatusFailed, state.Status)
}

func TestController_LoadFailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want MediaErrorKind
	}{
		{name: "media error passes through", err: newMediaError(MediaNotFound, "x", nil), want: MediaNotFound},
		{name: "unknown error is network", err: errors.New("connection reset"), want: MediaNetwork},
		{name: "canceled is aborted", err: context.Canceled, want: MediaAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := LoaderFunc(func(context.Context, Source) (Metadata, error) {
				return Metadata{}, tt.err
			})
			c, _ := newTestController(t, loader)
			require.NoError(t, c.Load(context.Background(), Source{URL: "x"}))
			require.Eventually(t, func() bool { return c.State().Error != nil }, waitFor, tick)
			assert.Equal(t, tt.want, c.State().Error.Kind)
			assert.ErrorIs(t, c.State().Error, &MediaError{Kind: tt.want})
		})
	}
}

func TestController_SupersededLoadIgnored(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, src Source) (Metadata, error) {
		if src.URL == "slow" {
			<-ctx.Done()
			return Metadata{}, errors.New("late failure")
		}
		return Metadata{Duration: 10}, nil
	})
	c, _ := newTestController(t, loader)

	require.NoError(t, c.Load(context.Background(), Source{URL: "slow"}))
	loadReady(t, c, "fast")

	assert.Never(t, func() bool { return c.State().Error != nil }, 50*time.Millisecond, tick)
	assert.Equal(t, "fast", c.State().Source)
}

func TestController_SeekClamps(t *testing.T) {
	c, _ := newTestController(t, staticLoader(Metadata{Duration: 120}))
	loadReady(t, c, "clip.mp4")

	for _, target := range []float64{-5, 0, 0.5, 60, 119.999, 120, 121, 1e9} {
		require.NoError(t, c.Seek(target))
		assert.Equal(t, clamp(target, 0, 120), c.CurrentTime(), "seek %v", target)
	}

	var verr *ValidationError
	require.ErrorAs(t, c.Seek(math.NaN()), &verr)
	assert.Equal(t, InvalidSeekTarget, verr.Kind)
	require.ErrorAs(t, c.Seek(math.Inf(1)), &verr)
}

func TestController_SeekExact(t *testing.T) {
	c, _ := newTestController(t, staticLoader(Metadata{Duration: 120}))
	loadReady(t, c, "clip.mp4")

	assert.ErrorIs(t, c.SeekExact(121), &ValidationError{Kind: InvalidSeekTarget})
	assert.ErrorIs(t, c.SeekExact(-1), &ValidationError{Kind: InvalidSeekTarget})
	require.NoError(t, c.SeekExact(42))
	assert.Equal(t, 42.0, c.CurrentTime())
}

func TestController_SeekQueuedUntilMetadata(t *testing.T) {
	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, _ Source) (Metadata, error) {
		<-release
		return Metadata{Duration: 120}, nil
	})
	c, _ := newTestController(t, loader)
	require.NoError(t, c.Load(context.Background(), Source{URL: "clip.mp4"}))

	require.NoError(t, c.Seek(500))
	require.NoError(t, c.SeekExact(500), "targets are not validated before duration is known")
	assert.Equal(t, 0.0, c.CurrentTime())

	close(release)
	require.Eventually(t, func() bool { return c.State().Loaded }, waitFor, tick)
	assert.Equal(t, 120.0, c.CurrentTime())
}

func TestController_PlaySamplesTime(t *testing.T) {
	c, clock := newTestController(t, staticLoader(Metadata{Duration: 120}))
	loadReady(t, c, "clip.mp4")

	c.Play()
	c.Play()
	assert.True(t, c.State().IsPlaying)

	var advanced time.Duration
	require.Eventually(t, func() bool {
		clock.Advance(100 * time.Millisecond)
		advanced += 100 * time.Millisecond
		return c.CurrentTime() >= 1.0
	}, waitFor, tick)

	c.Pause()
	c.Pause()
	state := c.State()
	assert.False(t, state.IsPlaying)
	assert.InDelta(t, advanced.Seconds(), state.CurrentTime, 1e-9)

	clock.Advance(10 * time.Second)
	assert.InDelta(t, advanced.Seconds(), c.CurrentTime(), 1e-9, "paused time only moves on seek")
}

func TestController_RateScalesSampling(t *testing.T) {
	c, clock := newTestController(t, staticLoader(Metadata{Duration: 120}))
	loadReady(t, c, "clip.mp4")

	require.NoError(t, c.SetRate(2))
	c.Play()
	clock.Advance(time.Second)
	c.Pause()

	assert.InDelta(t, 2.0, c.CurrentTime(), 1e-9)
	assert.ErrorIs(t, c.SetRate(0), &ValidationError{Kind: InvalidRate})
	assert.ErrorIs(t, c.SetRate(-1), &ValidationError{Kind: InvalidRate})
	assert.Equal(t, 2.0, c.State().Rate)
}

func TestController_EndOfMediaPauses(t *testing.T) {
	c, clock := newTestController(t, staticLoader(Metadata{Duration: 2}))
	loadReady(t, c, "clip.mp4")

	c.Play()
	require.Eventually(t, func() bool {
		clock.Advance(500 * time.Millisecond)
		return !c.State().IsPlaying
	}, waitFor, tick)
	assert.Equal(t, 2.0, c.CurrentTime())
}

func TestController_LoopWraps(t *testing.T) {
	c, clock := newTestController(t, staticLoader(Metadata{Duration: 2}))
	loadReady(t, c, "clip.mp4")
	c.SetLoop(true)

	c.Play()
	var advanced time.Duration
	require.Eventually(t, func() bool {
		clock.Advance(500 * time.Millisecond)
		advanced += 500 * time.Millisecond
		return advanced >= 2500*time.Millisecond && c.CurrentTime() < 1.0
	}, waitFor, tick)
	assert.True(t, c.State().IsPlaying)

	c.Pause()
	assert.InDelta(t, math.Mod(advanced.Seconds(), 2), c.CurrentTime(), 1e-9)
}

func TestController_MuteRemembersVolume(t *testing.T) {
	c, _ := newTestController(t, staticLoader(Metadata{Duration: 10}))

	c.SetVolume(0.4)
	c.ToggleMute()
	state := c.State()
	assert.True(t, state.Muted)
	assert.Equal(t, 0.0, state.Volume)

	c.ToggleMute()
	state = c.State()
	assert.False(t, state.Muted)
	assert.Equal(t, 0.4, state.Volume)

	c.SetVolume(3)
	assert.Equal(t, 1.0, c.State().Volume)

	c.SetVolume(0)
	c.ToggleMute()
	c.ToggleMute()
	assert.Equal(t, 1.0, c.State().Volume, "muting at zero keeps the last audible level")
}

func TestController_SelectQuality(t *testing.T) {
	c, _ := newTestController(t, staticLoader(Metadata{Duration: 10, Height: 1080}))
	loadReady(t, c, "clip.mp4")

	require.NoError(t, c.SelectQuality(Quality540))
	assert.Equal(t, Quality540, c.State().Quality)
	assert.ErrorIs(t, c.SelectQuality(Quality(480)), ErrQualityUnavailable)
}

func TestController_Subscribe(t *testing.T) {
	c, _ := newTestController(t, staticLoader(Metadata{Duration: 10}))

	var (
		mu   sync.Mutex
		seen []bool
	)
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Loop)
	})

	c.SetLoop(true)
	c.SetLoop(false)
	unsubscribe()
	unsubscribe()
	c.SetLoop(true)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestController_Close(t *testing.T) {
	c, _ := newTestController(t, blockingLoader())
	require.NoError(t, c.Load(context.Background(), Source{URL: "clip.mp4"}))

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Load(context.Background(), Source{URL: "clip.mp4"}), ErrClosed)
	assert.ErrorIs(t, c.Seek(1), ErrClosed)
	assert.Never(t, func() bool { return c.State().Error != nil }, 50*time.Millisecond, tick)
}
