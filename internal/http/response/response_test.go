package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_WritesBodyVerbatim(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusOK, map[string]int{"count": 3}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())
}

func TestError_Shape(t *testing.T) {
	rec := httptest.NewRecorder()

	BadRequest(rec, "invalid request body", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())
}

func TestDecode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"size":42}`))

	var body struct {
		Size int `json:"size"`
	}
	require.NoError(t, Decode(req, &body))
	assert.Equal(t, 42, body.Size)
}

func TestDecode_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"size":`))

	var body struct {
		Size int `json:"size"`
	}
	assert.Error(t, Decode(req, &body))
}
