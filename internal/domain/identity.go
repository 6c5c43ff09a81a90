package domain

// Identity is the local actor for the lifetime of a session.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

type Asset struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Name      string  `json:"name"`
	SourceURL string  `json:"source_url"`
	MimeType  string  `json:"mime_type"`
	FrameRate float64 `json:"frame_rate"`
	Duration  float64 `json:"duration"`
}
