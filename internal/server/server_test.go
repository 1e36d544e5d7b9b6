package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"report_renderer/internal/config"
	"report_renderer/internal/export"
	"report_renderer/internal/models"
	"report_renderer/internal/service"
	"report_renderer/internal/storage"
	"report_renderer/internal/template"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportService is a mock implementation of the ReportService interface
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) RenderSingle(ctx context.Context, record any, req service.Request) (*export.Result, error) {
	args := m.Called(ctx, record, req)
	res, _ := args.Get(0).(*export.Result)
	return res, args.Error(1)
}

func (m *MockReportService) RenderCollection(ctx context.Context, records []any, req service.Request) (*export.Result, error) {
	args := m.Called(ctx, records, req)
	res, _ := args.Get(0).(*export.Result)
	return res, args.Error(1)
}

func (m *MockReportService) ListRenders(ctx context.Context, params service.ListRenderParams) (*service.RenderList, error) {
	args := m.Called(ctx, params)
	list, _ := args.Get(0).(*service.RenderList)
	return list, args.Error(1)
}

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() config.Config {
	return config.Config{Server: config.Server{Address: ":0", RequestTimeout: 5 * time.Second}}
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// newRealServer wires the real pipeline over the sample layouts
func newRealServer(t *testing.T) *Server {
	t.Helper()
	logger := setupTestLogger()

	base, err := filepath.Abs(filepath.Join("..", "..", "templates"))
	require.NoError(t, err)
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: base}, logger)
	require.NoError(t, err)

	cache := template.NewCache(store, template.CacheConfig{MaxSize: 4}, logger)
	renderer := service.NewRenderer(cache, nil, service.Options{
		SingleTemplate:     "report.hcl",
		CollectionTemplate: "report-collection.hcl",
	}, logger)
	return NewServer(testConfig(), renderer, logger)
}

func TestHealthCheck(t *testing.T) {
	srv := NewServer(testConfig(), new(MockReportService), setupTestLogger())

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRenderPDFSingleRecord(t *testing.T) {
	srv := newRealServer(t)

	body := `{"id":1,"name":"i20","price":90000}`
	first := doRequest(t, srv, http.MethodPost, "/api/report/pdf", body)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "application/pdf", first.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report.pdf"`, first.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(first.Body.Bytes(), []byte("%PDF-")))

	second := doRequest(t, srv, http.MethodPost, "/api/report/pdf", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestRenderDOCXSingleRecord(t *testing.T) {
	srv := newRealServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/report/docx?company=Globex", `{"id":2,"name":"Solaris","price":1200}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestRenderDataSource(t *testing.T) {
	srv := newRealServer(t)

	body := `[{"id":1,"name":"a","price":1},{"id":2,"name":"b","price":2},{"id":3,"name":"c","price":3}]`
	rec := doRequest(t, srv, http.MethodPost, "/api/report/data-source", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = doRequest(t, srv, http.MethodPost, "/api/report/data-source/xlsx", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="report.xlsx"`, rec.Header().Get("Content-Disposition"))

	rec = doRequest(t, srv, http.MethodPost, "/api/report/data-source", `[]`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRenderDataSourceUnknownFormat(t *testing.T) {
	srv := newRealServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/report/data-source/odt", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	out := decodeJSON(t, rec)
	assert.Equal(t, "Failed to render report", out["error"])
	assert.Equal(t, rec.Header().Get("X-Request-Id"), out["request_id"])
}

func TestRenderBadRequests(t *testing.T) {
	srv := NewServer(testConfig(), new(MockReportService), setupTestLogger())

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"malformed json", "/api/report/pdf", `{"id":`},
		{"invalid record", "/api/report/pdf", `{"id":0,"name":"x"}`},
		{"negative price", "/api/report/docx", `{"id":1,"name":"x","price":-1}`},
		{"not an array", "/api/report/data-source", `{"id":1}`},
		{"invalid element", "/api/report/data-source", `[{"id":1,"name":"a"},{"id":2}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeJSON(t, rec)["error"])
		})
	}
}

func TestRenderFailureIsGeneric(t *testing.T) {
	svc := new(MockReportService)
	svc.On("RenderSingle", mock.Anything, models.Record{ID: 1, Name: "x"}, mock.Anything).
		Return(nil, &service.StageError{Stage: models.StageReceived, Template: "report.hcl", Err: storage.ErrNotFound})

	srv := NewServer(testConfig(), svc, setupTestLogger())
	rec := doRequest(t, srv, http.MethodPost, "/api/report/pdf", `{"id":1,"name":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out := decodeJSON(t, rec)
	assert.Equal(t, "Failed to render report", out["error"])
	assert.NotContains(t, rec.Body.String(), "template not found")
	svc.AssertExpectations(t)
}

func TestQueryStringBecomesParams(t *testing.T) {
	svc := new(MockReportService)
	svc.On("RenderCollection", mock.Anything, mock.Anything, mock.MatchedBy(func(req service.Request) bool {
		return req.Format == export.FormatDOCX && req.Params["company"] == "Globex"
	})).Return(&export.Result{Format: export.FormatDOCX, Data: []byte("PK"), ContentType: "application/octet-stream", Extension: "docx"}, nil)

	srv := NewServer(testConfig(), svc, setupTestLogger())
	rec := doRequest(t, srv, http.MethodPost, "/api/report/data-source/docx?company=Globex", `[{"id":1,"name":"a"}]`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestListRenders(t *testing.T) {
	svc := new(MockReportService)
	svc.On("ListRenders", mock.Anything, service.ListRenderParams{Page: 2, PageSize: 5, Stage: models.StageFailed}).
		Return(&service.RenderList{Total: 6, Page: 2, PageSize: 5, TotalPages: 2, Renders: []models.RenderRecord{{Template: "report.hcl"}}}, nil)

	srv := NewServer(testConfig(), svc, setupTestLogger())
	rec := doRequest(t, srv, http.MethodGet, "/api/report/renders?page=2&page_size=5&stage=failed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeJSON(t, rec)
	assert.EqualValues(t, 6, out["total"])
	assert.EqualValues(t, 2, out["total_pages"])
	svc.AssertExpectations(t)
}

func TestListRendersError(t *testing.T) {
	svc := new(MockReportService)
	svc.On("ListRenders", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	srv := NewServer(testConfig(), svc, setupTestLogger())
	rec := doRequest(t, srv, http.MethodGet, "/api/report/renders", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
