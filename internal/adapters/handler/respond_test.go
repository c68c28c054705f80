package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/adapters/observability"
	"github.com/pralapin/school-service/internal/core/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrLocked, http.StatusConflict},
		{domain.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError_HidesInternalAndAuthDetails(t *testing.T) {
	logger := observability.NopLogger()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	tests := []struct {
		err  error
		want string
	}{
		{errors.New("pq: connection refused"), "internal server error"},
		{errors.Join(domain.ErrUnauthorized, errors.New("invalid credentials")), "unauthorized"},
		{fmt.Errorf("%w: name is required", domain.ErrValidation), "validation failed: name is required"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, req, logger, tt.err)

		var body errorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tt.want, body.Error)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
		Count int    `json:"count" validate:"gte=0"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"email":"a@b.test","count":1}`, ""},
		{"malformed", `{"email":`, "invalid request body"},
		{"missing email", `{"count":1}`, "payload.Email (required)"},
		{"negative count", `{"email":"a@b.test","count":-1}`, "payload.Count (gte)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := decodeAndValidate(req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@b.test", dst.Email)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc", nil)

	n, err := queryInt(req, "page")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = queryInt(req, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = queryInt(req, "limit")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReadUpload(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	png := []byte("\x89PNG\r\n\x1a\n0000")
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, contentType, err := readUpload(req)
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, "image/png", contentType, "octet-stream parts are sniffed")

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	empty.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	_, _, err = readUpload(empty)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReadUploads(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"a.png", "b.png"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("captions", "first"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	uploads, err := readUploads(req)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "first", uploads[0].Caption)
	assert.Empty(t, uploads[1].Caption)
	assert.Equal(t, "image/png", uploads[1].ContentType)

	var single bytes.Buffer
	mw = multipart.NewWriter(&single)
	require.NoError(t, mw.WriteField("captions", "orphan"))
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/", &single)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, err = readUploads(req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
