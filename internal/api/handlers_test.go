package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/plc-filebridge/backend/internal/journal"
	"github.com/plc-filebridge/backend/internal/models"
	"github.com/plc-filebridge/backend/internal/progress"
	"github.com/plc-filebridge/backend/internal/storage"
)

func newTestServer(t *testing.T, runs RunLister) (*echo.Echo, *storage.LocalStore, *progress.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(dir, "data"))
	require.NoError(t, err)
	prog := progress.NewStore(filepath.Join(dir, "last_row_info.json"), nil)

	e := echo.New()
	SetupMiddleware(e, nil, "1M")
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:    store,
		Progress: prog,
		Runs:     runs,
		SavePath: store.Root(),
		Version:  "test",
	}))
	return e, store, prog
}

func multipartBody(t *testing.T, fields map[string]string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if content != nil {
		part, err := w.CreateFormFile("filename", fields["orgfilename"])
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func post(e *echo.Echo, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/opcFileSave", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFileSave(t *testing.T) {
	e, store, _ := newTestServer(t, nil)
	fields := map[string]string{
		"deviceid":    "press01",
		"dataid":      "LINE3",
		"orgfilename": "log_20240501.xlsx",
		"headerline":  "[1,2]",
		"path":        "LINE3",
	}
	body, ct := multipartBody(t, fields, []byte("workbook bytes"))

	rec := post(e, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	path := filepath.Join(store.Root(), "press01", "LINE3", "log_20240501.xlsx")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "workbook bytes", string(content))

	task, err := storage.LoadTask(path)
	require.NoError(t, err)
	assert.Equal(t, "LINE3", task.DataID)
	assert.Equal(t, models.HeaderSpec{1, 2}, task.Header)
}

func TestFileSave_MissingFields(t *testing.T) {
	e, _, _ := newTestServer(t, nil)
	for _, missing := range []string{"deviceid", "dataid", "orgfilename"} {
		fields := map[string]string{"deviceid": "d", "dataid": "x", "orgfilename": "a.xlsx"}
		delete(fields, missing)
		body, ct := multipartBody(t, fields, []byte("x"))

		rec := post(e, body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var apiErr APIError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
		assert.False(t, apiErr.Success)
		assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
		assert.Contains(t, apiErr.Message, missing)
	}
}

func TestFileSave_LiveCheck(t *testing.T) {
	e, store, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, map[string]string{
		"deviceid": "press01", "dataid": "-", "path": "-", "orgfilename": "-", "headerline": "-",
	}, []byte{})

	rec := post(e, body, ct)
	assert.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileSave_NoFile(t *testing.T) {
	e, _, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, map[string]string{"deviceid": "d", "dataid": "x", "orgfilename": "a.xlsx"}, nil)
	assert.Equal(t, http.StatusBadRequest, post(e, body, ct).Code)
}

func TestFileSave_RejectsTraversal(t *testing.T) {
	e, _, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, map[string]string{"deviceid": "..", "dataid": "x", "orgfilename": "a.xlsx"}, []byte("x"))
	rec := post(e, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestFileSave_BodyLimit(t *testing.T) {
	e, _, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, map[string]string{"deviceid": "d", "dataid": "x", "orgfilename": "a.xlsx"}, bytes.Repeat([]byte("x"), 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(e, body, ct).Code)
}

func TestHealth(t *testing.T) {
	e, _, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestProgress_JSONAndMsgpack(t *testing.T) {
	e, _, prog := newTestServer(t, nil)
	ts := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	require.NoError(t, prog.Merge(context.Background(), models.Delta{
		{Key: models.ProgressKey{FilePath: "/data/a.xlsx", Sheet: "Sheet1"}, Time: ts},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"watermark":"2024-01-01 00:00:01"`)
	assert.Contains(t, rec.Body.String(), `"filePath":"/data/a.xlsx"`)

	req = httptest.NewRequest(http.MethodGet, "/api/progress?format=msgpack", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var decoded struct {
		Count   int              `msgpack:"count"`
		Entries []progress.Entry `msgpack:"entries"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Count)
	assert.Equal(t, "Sheet1", decoded.Entries[0].Key.Sheet)
}

type stubRuns struct {
	runs []journal.RunSummary
	err  error
}

func (s stubRuns) Recent(_ context.Context, limit int) ([]journal.RunSummary, error) {
	if len(s.runs) > limit {
		return s.runs[:limit], s.err
	}
	return s.runs, s.err
}

func TestRuns(t *testing.T) {
	e, _, _ := newTestServer(t, stubRuns{runs: []journal.RunSummary{{RunID: "r1"}, {RunID: "r2"}}})

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runId":"r1"`)
	assert.NotContains(t, rec.Body.String(), `"runId":"r2"`)

	req = httptest.NewRequest(http.MethodGet, "/api/runs?limit=abc", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns_Disabled(t *testing.T) {
	e, _, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestErrorHandler_UnknownError(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(nil, true)
	e.GET("/boom", func(c echo.Context) error { return errors.New("kaput") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN_ERROR")
	assert.Contains(t, rec.Body.String(), "kaput")
}
