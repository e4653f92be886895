package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func TestWriteErrorAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, NewAppError("INVALID_ARGUMENT", "bad precision", http.StatusUnprocessableEntity, errors.New("boom")))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "INVALID_ARGUMENT", body.Error.Code)
	require.Equal(t, "bad precision", body.Error.Message)
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("database password is hunter2"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "hunter2")
}

func TestDecodeJSONSyntaxOffset(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":`))
	var dst map[string]any
	err := DecodeJSON(req, &dst)
	require.True(t, IsAppError(err))

	rr := httptest.NewRecorder()
	WriteError(rr, err)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unexpected":1}`))
	var dst struct {
		Known int `json:"known"`
	}
	require.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"known":1} {"known":2}`))
	require.Error(t, DecodeJSON(req, &dst))
}

func TestDecodeJSONPayloadTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"known":123456789}`))
	rr := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rr, req.Body, 4)
	var dst struct {
		Known int `json:"known"`
	}
	err := DecodeJSON(req, &dst)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusRequestEntityTooLarge, appErr.HTTPStatus)
}
