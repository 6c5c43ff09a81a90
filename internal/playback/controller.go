package playback

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultLoadTimeout  = 5 * time.Second
	DefaultTickInterval = 16 * time.Millisecond
)

type Config struct {
	Loader       Loader
	Clock        clockwork.Clock
	LoadTimeout  time.Duration
	TickInterval time.Duration
}

// Controller exclusively owns a State. Other components read snapshots via
// State or Subscribe and request changes through its methods.
type Controller struct {
	loader       Loader
	clock        clockwork.Clock
	loadTimeout  time.Duration
	tickInterval time.Duration

	mu          sync.Mutex
	state       State
	preMute     float64
	pendingSeek *float64
	anchorPos   float64
	anchorAt    time.Time
	loadGen     uint64
	loadCancel  context.CancelFunc
	loopGen     uint64
	loopCancel  context.CancelFunc
	subs        map[int]func(State)
	nextSubID   int
	closed      bool
}

func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Loader == nil {
		cfg.Loader = FFProbeLoader{}
	}

	return &Controller{
		loader:       cfg.Loader,
		clock:        cfg.Clock,
		loadTimeout:  cfg.LoadTimeout,
		tickInterval: cfg.TickInterval,
		state:        initialState(""),
		preMute:      defaultVolume,
		subs:         make(map[int]func(State)),
	}
}

// Load resets the transport and starts acquiring metadata for src in the
// background. Failures land in State.Error rather than being returned.
func (c *Controller) Load(ctx context.Context, src Source) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	c.stopLoopLocked()
	if c.loadCancel != nil {
		c.loadCancel()
	}
	c.loadGen++
	gen := c.loadGen
	c.state = initialState(src.URL)
	c.state.Status = StatusLoading
	c.preMute = defaultVolume
	c.pendingSeek = nil
	c.anchorPos = 0

	loadCtx, cancel := context.WithCancel(ctx)
	c.loadCancel = cancel
	// created under the lock so the deadline counts from this call
	watchdog := c.clock.NewTimer(c.loadTimeout)
	c.mu.Unlock()

	slog.DebugContext(ctx, "playback load started", "source", src.URL, "gen", gen)
	c.notify()

	go c.runLoad(loadCtx, gen, src, watchdog)
	return nil
}

type loadResult struct {
	md  Metadata
	err error
}

func (c *Controller) runLoad(ctx context.Context, gen uint64, src Source, watchdog clockwork.Timer) {
	defer watchdog.Stop()

	results := make(chan loadResult, 1)
	go func() {
		md, err := c.loader.Load(ctx, src)
		results <- loadResult{md: md, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			c.failLoad(ctx, gen, toMediaError(src.URL, r.err))
			return
		}
		c.finishLoad(ctx, gen, r.md)
	case <-watchdog.Chan():
		c.failLoad(ctx, gen, newMediaError(MediaTimeout, src.URL, nil))
	case <-ctx.Done():
		c.failLoad(ctx, gen, newMediaError(MediaAborted, src.URL, ctx.Err()))
	}
}

func toMediaError(source string, err error) *MediaError {
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return mediaErr
	}
	if errors.Is(err, context.Canceled) {
		return newMediaError(MediaAborted, source, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newMediaError(MediaTimeout, source, err)
	}
	return newMediaError(MediaNetwork, source, err)
}

func (c *Controller) failLoad(ctx context.Context, gen uint64, mediaErr *MediaError) {
	c.mu.Lock()
	if gen != c.loadGen || c.closed {
		c.mu.Unlock()
		return
	}
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.state.Status = StatusFailed
	c.state.Loaded = false
	c.state.Error = mediaErr
	c.state.IsPlaying = false
	c.pendingSeek = nil
	c.stopLoopLocked()
	c.mu.Unlock()

	slog.WarnContext(ctx, "playback load failed", "source", mediaErr.Source, "kind", mediaErr.Kind, "error", mediaErr.Err)
	c.notify()
}

func (c *Controller) finishLoad(ctx context.Context, gen uint64, md Metadata) {
	c.mu.Lock()
	if gen != c.loadGen || c.closed {
		c.mu.Unlock()
		return
	}
	c.loadCancel = nil
	c.state.Status = StatusReady
	c.state.Loaded = true
	c.state.Error = nil
	c.state.Duration = sanitize(md.Duration)
	c.state.FrameRate = sanitize(md.FrameRate)
	c.state.MaxQuality = MaxQuality(md.Height)
	c.state.Qualities = AvailableQualities(c.state.MaxQuality)
	c.state.Quality = c.state.MaxQuality

	if c.pendingSeek != nil {
		c.state.CurrentTime = clamp(*c.pendingSeek, 0, c.state.Duration)
		c.pendingSeek = nil
	}
	c.anchorPos = c.state.CurrentTime
	if c.state.IsPlaying {
		c.startLoopLocked()
	}
	c.mu.Unlock()

	slog.DebugContext(ctx, "playback metadata loaded", "duration", md.Duration, "height", md.Height, "frame_rate", md.FrameRate)
	c.notify()
}

// Play is a no-op while already playing. Before metadata is known the intent
// is remembered and sampling starts once the source is ready.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.closed || c.state.IsPlaying {
		c.mu.Unlock()
		return
	}
	c.state.IsPlaying = true
	if c.state.Loaded {
		if c.state.Duration > 0 && c.state.CurrentTime >= c.state.Duration && !c.state.Loop {
			c.state.CurrentTime = 0
		}
		c.startLoopLocked()
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) Pause() {
	c.mu.Lock()
	if c.closed || !c.state.IsPlaying {
		c.mu.Unlock()
		return
	}
	if c.loopCancel != nil {
		c.advanceLocked()
	}
	c.state.IsPlaying = false
	c.stopLoopLocked()
	c.mu.Unlock()
	c.notify()
}

// Seek clamps t into [0, duration]. Before metadata is known the target is
// queued and applied on load.
func (c *Controller) Seek(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return &ValidationError{Kind: InvalidSeekTarget, Value: t}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.state.Loaded {
		target := max(t, 0)
		c.pendingSeek = &target
		c.mu.Unlock()
		return nil
	}
	c.seekLocked(t)
	c.mu.Unlock()
	c.notify()
	return nil
}

// SeekExact is Seek without clamping: a target outside [0, duration] is
// rejected once duration is known.
func (c *Controller) SeekExact(t float64) error {
	c.mu.Lock()
	loaded, duration := c.state.Loaded, c.state.Duration
	c.mu.Unlock()

	if loaded && (t < 0 || t > duration) {
		return &ValidationError{Kind: InvalidSeekTarget, Value: t}
	}
	return c.Seek(t)
}

func (c *Controller) seekLocked(t float64) {
	c.state.CurrentTime = clamp(t, 0, c.state.Duration)
	c.anchorPos = c.state.CurrentTime
	c.anchorAt = c.clock.Now()
}

func (c *Controller) SetRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return &ValidationError{Kind: InvalidRate, Value: rate}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.loopCancel != nil {
		c.advanceLocked()
		c.anchorPos = c.state.CurrentTime
		c.anchorAt = c.clock.Now()
	}
	c.state.Rate = rate
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetVolume clamps v into [0, 1] and unmutes.
func (c *Controller) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Volume = clamp(v, 0, 1)
	c.state.Muted = false
	if c.state.Volume > 0 {
		c.preMute = c.state.Volume
	}
	c.mu.Unlock()
	c.notify()
}

// ToggleMute zeroes the volume, remembering the previous level for restore.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state.Muted {
		c.state.Volume = c.preMute
		c.state.Muted = false
	} else {
		if c.state.Volume > 0 {
			c.preMute = c.state.Volume
		}
		c.state.Volume = 0
		c.state.Muted = true
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) SetLoop(loop bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Loop = loop
	c.mu.Unlock()
	c.notify()
}

// SelectQuality only changes the advertised selection; the source is not transcoded.
func (c *Controller) SelectQuality(q Quality) error {
	c.mu.Lock()
	found := false
	for _, available := range c.state.Qualities {
		if available == q {
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return ErrQualityUnavailable
	}
	c.state.Quality = q
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.clone()
}

// CurrentTime returns the sampled position.
func (c *Controller) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.CurrentTime
}

func (c *Controller) FrameRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.FrameRate
}

// Subscribe registers fn for every state change. The returned function
// removes the subscription and is safe to call more than once.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close cancels any in-flight load and the sampling loop and drops all subscribers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.stopLoopLocked()
	c.state.IsPlaying = false
	clear(c.subs)
}

func (c *Controller) startLoopLocked() {
	if c.loopCancel != nil {
		return
	}
	c.anchorPos = c.state.CurrentTime
	c.anchorAt = c.clock.Now()

	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	c.loopGen++
	ticker := c.clock.NewTicker(c.tickInterval)

	go c.sampleLoop(ctx, c.loopGen, ticker)
}

func (c *Controller) stopLoopLocked() {
	if c.loopCancel == nil {
		return
	}
	c.loopCancel()
	c.loopCancel = nil
	c.loopGen++
}

func (c *Controller) sampleLoop(ctx context.Context, gen uint64, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !c.sample(gen) {
				return
			}
		}
	}
}

func (c *Controller) sample(gen uint64) bool {
	c.mu.Lock()
	if gen != c.loopGen || c.closed {
		c.mu.Unlock()
		return false
	}
	c.advanceLocked()
	running := c.loopCancel != nil
	c.mu.Unlock()

	c.notify()
	return running
}

// advanceLocked projects the anchor forward to now and handles end of media.
func (c *Controller) advanceLocked() {
	now := c.clock.Now()
	pos := c.anchorPos + now.Sub(c.anchorAt).Seconds()*c.state.Rate
	duration := c.state.Duration

	if duration > 0 && pos >= duration {
		if c.state.Loop {
			pos = math.Mod(pos, duration)
			c.anchorPos = pos
			c.anchorAt = now
		} else {
			pos = duration
			c.state.IsPlaying = false
			c.stopLoopLocked()
		}
	}
	c.state.CurrentTime = clamp(pos, 0, duration)
}

func (c *Controller) notify() {
	c.mu.Lock()
	if c.closed || len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	snapshot := c.state.clone()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
