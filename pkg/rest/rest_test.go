package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusCreated, Envelope{"data": "ok"}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":"ok"}`, rec.Body.String())
}

func TestReadJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	var dst body
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}`))
	require.NoError(t, ReadJSON(r, &dst))
	assert.Equal(t, "Ada", dst.Name)

	for _, raw := range []string{``, `{"nope":1}`, `{"name":"a"}{"name":"b"}`} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		assert.Error(t, ReadJSON(r, &dst), raw)
	}
}
