package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const defaultFFProbeBinary = "ffprobe"

// FFProbeLoader reads source metadata by running ffprobe against the source URL.
type FFProbeLoader struct {
	Binary string
}

type mediaInfo struct {
	Streams []mediaStream `json:"streams"`
	Format  mediaFormat   `json:"format"`
}

type mediaStream struct {
	CodecType    string `json:"codec_type"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

type mediaFormat struct {
	Duration string `json:"duration"`
}

func (l FFProbeLoader) Load(ctx context.Context, src Source) (Metadata, error) {
	binary := l.Binary
	if binary == "" {
		binary = defaultFFProbeBinary
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		src.URL,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Metadata{}, newMediaError(MediaAborted, src.URL, ctxErr)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return Metadata{}, newMediaError(MediaFormatUnsupported, src.URL, fmt.Errorf("failed to find ffprobe: %w", err))
		}
		kind := classifyLoadFailure(stderr.String())
		return Metadata{}, newMediaError(kind, src.URL, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String())))
	}

	md, err := parseMediaInfo(stdout.Bytes())
	if err != nil {
		return Metadata{}, newMediaError(MediaFormatUnsupported, src.URL, err)
	}
	return md, nil
}

func parseMediaInfo(data []byte) (Metadata, error) {
	var out mediaInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}

	var md Metadata
	if out.Format.Duration != "" && out.Format.Duration != "N/A" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("failed to parse duration %q: %w", out.Format.Duration, err)
		}
		md.Duration = max(d, 0)
	}

	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		md.Height = s.Height
		md.FrameRate = parseFrameRate(s.AvgFrameRate)
		if md.FrameRate == 0 {
			md.FrameRate = parseFrameRate(s.RFrameRate)
		}
		break
	}
	if !found && md.Duration == 0 {
		return Metadata{}, errors.New("no video stream and no duration")
	}

	return md, nil
}

// parseFrameRate accepts ffprobe rationals such as "30000/1001".
func parseFrameRate(value string) float64 {
	num, den, ok := strings.Cut(value, "/")
	if !ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func classifyLoadFailure(stderr string) MediaErrorKind {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "no such file"),
		strings.Contains(msg, "404 not found"),
		strings.Contains(msg, "server returned 404"):
		return MediaNotFound
	case strings.Contains(msg, "invalid data found"),
		strings.Contains(msg, "unsupported"),
		strings.Contains(msg, "could not find codec"):
		return MediaFormatUnsupported
	case strings.Contains(msg, "immediate exit requested"),
		strings.Contains(msg, "exiting normally, received signal"):
		return MediaAborted
	default:
		return MediaNetwork
	}
}
