package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/playback"
	"github.com/sharetube/review/internal/repository/asset/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddAssetAndList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "review.db")

	out, err := run(t, "--db-path", db, "add-asset", "--skip-inspect", "--id", "a1", "p1", "cut-v3", "https://cdn/cut.mp4")
	require.NoError(t, err)
	assert.Contains(t, out, "Added asset a1 (cut-v3)")

	out, err = run(t, "--db-path", db, "assets", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "https://cdn/cut.mp4")
	assert.Contains(t, out, "╭", "assets render as a rounded table")
	assert.Contains(t, out, "DURATION")

	out, err = run(t, "--db-path", db, "assets", "p2")
	require.NoError(t, err)
	assert.Contains(t, out, "No assets")
}

func TestExport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "review.db")

	store, err := sqlite.Open(db, sqlite.Options{})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.CreateAsset(ctx, domain.Asset{ID: "a1", ProjectID: "p1", Name: "cut", SourceURL: "https://cdn/cut.mp4"}))
	_, err = store.CreateComment(ctx, domain.Comment{
		ID: "c1", AssetID: "a1", Timestamp: 75, Text: "tighten", AuthorID: "alice", AuthorName: "Alice",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := run(t, "--db-path", db, "export", "a1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Alice,tighten,01:15,2024-03-01T12:00:00Z", lines[1])

	_, err = run(t, "--db-path", db, "export", "missing")
	assert.Error(t, err)
}

func TestExportWindow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "review.db")

	store, err := sqlite.Open(db, sqlite.Options{})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.CreateAsset(ctx, domain.Asset{ID: "a1", ProjectID: "p1", Name: "cut", SourceURL: "https://cdn/cut.mp4"}))
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, c := range []domain.Comment{
		{ID: "c1", Timestamp: 30, Text: "intro"},
		{ID: "c2", Timestamp: 75, Text: "tighten"},
		{ID: "c3", Timestamp: 3700, Text: "credits"},
		{ID: "c4", Timestamp: domain.SentinelGeneral, Text: "overall"},
	} {
		c.AssetID, c.AuthorID, c.AuthorName, c.CreatedAt = "a1", "alice", "Alice", created
		_, err = store.CreateComment(ctx, c)
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	out, err := run(t, "--db-path", db, "export", "--from", "1:00", "--to", "1:01:00", "a1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Alice,tighten,01:15,2024-03-01T12:00:00Z", lines[1])

	out, err = run(t, "--db-path", db, "export", "--from", "3600", "a1")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "credits")

	_, err = run(t, "--db-path", db, "export", "--from", "soon", "a1")
	assert.ErrorContains(t, err, "invalid --from")

	_, err = run(t, "--db-path", db, "export", "--from", "2:00", "--to", "1:00", "a1")
	assert.ErrorContains(t, err, "before --from")
}

func TestInspectSource(t *testing.T) {
	loader := playback.LoaderFunc(func(_ context.Context, src playback.Source) (playback.Metadata, error) {
		if src.URL == "bad" {
			return playback.Metadata{}, errors.New("unreachable")
		}
		return playback.Metadata{Duration: 12.5, FrameRate: 24}, nil
	})

	meta, err := inspectSource(context.Background(), loader, domain.Asset{SourceURL: "https://cdn/cut.mp4"})
	require.NoError(t, err)
	assert.Equal(t, 24.0, meta.FrameRate)

	_, err = inspectSource(context.Background(), loader, domain.Asset{SourceURL: "bad"})
	assert.Error(t, err)
}
