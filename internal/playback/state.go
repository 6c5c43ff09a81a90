package playback

import "slices"

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

const (
	defaultVolume = 1.0
	defaultRate   = 1.0
)

// State is a read-only snapshot of the transport.
type State struct {
	Source      string      `json:"source"`
	Status      Status      `json:"status"`
	CurrentTime float64     `json:"current_time"`
	Duration    float64     `json:"duration"`
	IsPlaying   bool        `json:"is_playing"`
	Volume      float64     `json:"volume"`
	Muted       bool        `json:"muted"`
	Rate        float64     `json:"rate"`
	Loop        bool        `json:"loop"`
	FrameRate   float64     `json:"frame_rate"`
	Loaded      bool        `json:"loaded"`
	Error       *MediaError `json:"error,omitempty"`
	MaxQuality  Quality     `json:"max_quality"`
	Qualities   []Quality   `json:"qualities"`
	Quality     Quality     `json:"quality"`
}

func initialState(source string) State {
	return State{
		Source: source,
		Status: StatusIdle,
		Volume: defaultVolume,
		Rate:   defaultRate,
	}
}

func (s State) clone() State {
	s.Qualities = slices.Clone(s.Qualities)
	return s
}
