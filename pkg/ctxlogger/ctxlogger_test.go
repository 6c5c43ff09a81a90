package ctxlogger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := AppendCtx(context.Background(), slog.String("request_id", "r1"))
	child := AppendCtx(ctx, slog.String("member_id", "m1"))

	logger.InfoContext(child, "hello")
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "r1", record["request_id"])
	assert.Equal(t, "m1", record["member_id"])

	buf.Reset()
	logger.With("component", "hub").InfoContext(ctx, "parent")
	record = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hub", record["component"])
	assert.Equal(t, "r1", record["request_id"])
	assert.NotContains(t, record, "member_id")
}
