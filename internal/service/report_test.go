package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"report_renderer/internal/database"
	"report_renderer/internal/export"
	"report_renderer/internal/models"
	"report_renderer/internal/render"
	"report_renderer/internal/storage"
	"report_renderer/internal/template"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockStorage is a mock implementation of the template store
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Load(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockAudit is a mock implementation of the AuditRepository interface
type MockAudit struct {
	mock.Mock
}

func (m *MockAudit) Create(ctx context.Context, record *models.RenderRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAudit) List(ctx context.Context, params ListRenderParams) ([]models.RenderRecord, int64, error) {
	args := m.Called(ctx, params)
	records, _ := args.Get(0).([]models.RenderRecord)
	return records, args.Get(1).(int64), args.Error(2)
}

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(database.Config{Driver: database.DriverSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, setupTestLogger()))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func readLayout(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "templates", name))
	require.NoError(t, err)
	return data
}

type testEnv struct {
	store    *MockStorage
	cache    *template.Cache
	db       *gorm.DB
	renderer *Renderer
}

func setupTestRenderer(t *testing.T) *testEnv {
	t.Helper()
	logger := setupTestLogger()

	store := new(MockStorage)
	store.On("Load", mock.Anything, "report.hcl").Return(readLayout(t, "report.hcl"), nil).Maybe()
	store.On("Load", mock.Anything, "report-collection.hcl").Return(readLayout(t, "report-collection.hcl"), nil).Maybe()

	cache := template.NewCache(store, template.CacheConfig{MaxSize: 8}, logger)
	db := setupTestDB(t)

	renderer := NewRenderer(cache, NewGormAuditRepository(db), Options{
		SingleTemplate:     "report.hcl",
		CollectionTemplate: "report-collection.hcl",
		Parameters:         map[string]string{"company": "ACME"},
	}, logger)

	return &testEnv{store: store, cache: cache, db: db, renderer: renderer}
}

func documentXML(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	f, err := zr.Open("word/document.xml")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	return body
}

func vehicle(id int64, name string, price float64) models.Record {
	return models.Record{ID: id, Name: name, Price: price}
}

func TestRenderSingleIsDeterministic(t *testing.T) {
	env := setupTestRenderer(t)
	ctx := WithRequestID(context.Background(), "req-1")

	first, err := env.renderer.RenderSingle(ctx, vehicle(20, "Volvo", 1500.5), Request{Format: export.FormatPDF})
	require.NoError(t, err)
	second, err := env.renderer.RenderSingle(ctx, vehicle(20, "Volvo", 1500.5), Request{Format: export.FormatPDF})
	require.NoError(t, err)

	assert.Equal(t, export.FormatPDF, first.Format)
	assert.Equal(t, "application/pdf", first.ContentType)
	assert.True(t, bytes.HasPrefix(first.Data, []byte("%PDF-")))
	assert.Equal(t, first.Data, second.Data)

	// шаблон загружен и скомпилирован один раз
	env.store.AssertNumberOfCalls(t, "Load", 1)
	assert.Equal(t, 1, env.cache.Len())
}

func TestRenderSingleWritesAudit(t *testing.T) {
	env := setupTestRenderer(t)
	ctx := WithRequestID(context.Background(), "req-42")

	_, err := env.renderer.RenderSingle(ctx, vehicle(1, "Lada", 10), Request{Format: export.FormatXLSX})
	require.NoError(t, err)

	list, err := env.renderer.ListRenders(context.Background(), ListRenderParams{})
	require.NoError(t, err)
	require.Len(t, list.Renders, 1)

	rec := list.Renders[0]
	assert.Equal(t, "req-42", rec.RequestID)
	assert.Equal(t, "report.hcl", rec.Template)
	assert.Equal(t, "xlsx", rec.Format)
	assert.Equal(t, models.ModeSingle, rec.Mode)
	assert.Equal(t, models.StageDone, rec.Stage)
	assert.Empty(t, rec.FailedStage)
	assert.Equal(t, 1, rec.PageCount)
	assert.Positive(t, rec.SizeBytes)
	assert.Len(t, rec.Digest, 64)
	assert.Equal(t, "ACME", rec.Parameters["company"])
}

func TestRenderCollection(t *testing.T) {
	env := setupTestRenderer(t)

	records := []any{
		vehicle(3, "Saab", 300),
		vehicle(1, "Audi", 100),
		vehicle(2, "BMW", 200),
	}

	res, err := env.renderer.RenderCollection(context.Background(), records, Request{Format: export.FormatDOCX})
	require.NoError(t, err)
	assert.Equal(t, export.FormatDOCX, res.Format)
	assert.Equal(t, "docx", res.Extension)

	// порядок записей сохраняется
	doc := documentXML(t, res.Data)
	saab := bytes.Index(doc, []byte("Saab"))
	audi := bytes.Index(doc, []byte("Audi"))
	bmw := bytes.Index(doc, []byte("BMW"))
	require.True(t, saab >= 0 && audi >= 0 && bmw >= 0)
	assert.Less(t, saab, audi)
	assert.Less(t, audi, bmw)

	env.store.AssertCalled(t, "Load", mock.Anything, "report-collection.hcl")
}

func TestRenderCollectionEmpty(t *testing.T) {
	env := setupTestRenderer(t)

	res, err := env.renderer.RenderCollection(context.Background(), []any{}, Request{Format: export.FormatPDF})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Data)
}

func TestRenderCollectionNil(t *testing.T) {
	env := setupTestRenderer(t)

	_, err := env.renderer.RenderCollection(context.Background(), nil, Request{Format: export.FormatPDF})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilRecords)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, models.StageReceived, stageErr.Stage)
	env.store.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestRenderUnknownFormatTouchesNothing(t *testing.T) {
	env := setupTestRenderer(t)

	_, err := env.renderer.RenderSingle(context.Background(), vehicle(1, "Lada", 10), Request{Format: "odt"})
	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, models.StageReceived, stageErr.Stage)

	env.store.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	assert.Equal(t, 0, env.cache.Len())

	list, err := env.renderer.ListRenders(context.Background(), ListRenderParams{Stage: models.StageFailed})
	require.NoError(t, err)
	require.Len(t, list.Renders, 1)
	assert.Equal(t, models.StageReceived, list.Renders[0].FailedStage)
	assert.Contains(t, list.Renders[0].Error, "odt")
}

func TestRenderMissingAttribute(t *testing.T) {
	env := setupTestRenderer(t)

	record := map[string]any{"id": 7, "name": "Moskvich"}
	_, err := env.renderer.RenderSingle(context.Background(), record, Request{Format: export.FormatPDF})
	require.Error(t, err)

	var fillErr *render.FillError
	require.ErrorAs(t, err, &fillErr)
	assert.Equal(t, "record.price", fillErr.Binding)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, models.StageDataBound, stageErr.Stage)
}

func TestRenderTemplateNotFound(t *testing.T) {
	env := setupTestRenderer(t)
	env.store.On("Load", mock.Anything, "missing.hcl").
		Return(nil, fmt.Errorf("%w: missing.hcl", storage.ErrNotFound))

	_, err := env.renderer.RenderSingle(context.Background(), vehicle(1, "Lada", 10),
		Request{Format: export.FormatPDF, Template: "missing.hcl"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, models.StageReceived, stageErr.Stage)
	assert.Equal(t, "missing.hcl", stageErr.Template)
	assert.Equal(t, 0, env.cache.Len())
}

func TestRenderCancelledContext(t *testing.T) {
	env := setupTestRenderer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.renderer.RenderSingle(ctx, vehicle(1, "Lada", 10), Request{Format: export.FormatPDF})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// отмененный запрос тоже попадает в журнал
	list, err := env.renderer.ListRenders(context.Background(), ListRenderParams{})
	require.NoError(t, err)
	require.Len(t, list.Renders, 1)
	assert.Equal(t, models.StageFailed, list.Renders[0].Stage)
}

func TestRenderRequestParamsOverrideDefaults(t *testing.T) {
	env := setupTestRenderer(t)

	_, err := env.renderer.RenderSingle(context.Background(), vehicle(1, "Lada", 10), Request{
		Format: export.FormatPDF,
		Params: render.Params{"company": "Globex"},
	})
	require.NoError(t, err)

	list, err := env.renderer.ListRenders(context.Background(), ListRenderParams{})
	require.NoError(t, err)
	require.Len(t, list.Renders, 1)
	assert.Equal(t, "Globex", list.Renders[0].Parameters["company"])
}

func TestRenderConcurrentRequestsMatch(t *testing.T) {
	env := setupTestRenderer(t)
	expected, err := env.renderer.RenderSingle(context.Background(), vehicle(5, "Zil", 99.9), Request{Format: export.FormatPDF})
	require.NoError(t, err)

	const workers = 8
	results := make([][]byte, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.renderer.RenderSingle(context.Background(), vehicle(5, "Zil", 99.9), Request{Format: export.FormatPDF})
			errs[i] = err
			if res != nil {
				results[i] = res.Data
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, expected.Data, results[i])
	}
}

func TestAuditFailureDoesNotFailRender(t *testing.T) {
	logger := setupTestLogger()
	store := new(MockStorage)
	store.On("Load", mock.Anything, "report.hcl").Return(readLayout(t, "report.hcl"), nil)

	audit := new(MockAudit)
	audit.On("Create", mock.Anything, mock.AnythingOfType("*models.RenderRecord")).Return(errors.New("disk full"))

	renderer := NewRenderer(template.NewCache(store, template.CacheConfig{}, logger), audit,
		Options{SingleTemplate: "report.hcl", CollectionTemplate: "report-collection.hcl"}, logger)

	res, err := renderer.RenderSingle(context.Background(), vehicle(1, "Lada", 10), Request{Format: export.FormatPDF})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Data)
	audit.AssertExpectations(t)
}

func TestListRendersPagination(t *testing.T) {
	env := setupTestRenderer(t)
	for i := 1; i <= 5; i++ {
		_, err := env.renderer.RenderSingle(context.Background(), vehicle(int64(i), "Lada", 10), Request{Format: export.FormatXLSX})
		require.NoError(t, err)
	}

	list, err := env.renderer.ListRenders(context.Background(), ListRenderParams{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), list.Total)
	assert.Equal(t, 3, list.TotalPages)
	assert.Len(t, list.Renders, 2)

	list, err = env.renderer.ListRenders(context.Background(), ListRenderParams{Page: -1, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 100, list.PageSize)
	assert.Len(t, list.Renders, 5)
}

func TestListRendersRepositoryError(t *testing.T) {
	audit := new(MockAudit)
	audit.On("List", mock.Anything, ListRenderParams{Page: 1, PageSize: 20}).
		Return(nil, int64(0), errors.New("connection refused"))

	renderer := NewRenderer(nil, audit, Options{}, setupTestLogger())
	_, err := renderer.ListRenders(context.Background(), ListRenderParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: models.StageRendered, Template: "report.hcl", Err: errors.New("boom")}
	assert.Equal(t, "render failed after stage rendered (template report.hcl): boom", err.Error())

	err = &StageError{Stage: models.StageReceived, Err: ErrNilRecords}
	assert.Equal(t, "render failed after stage received: records must not be nil", err.Error())
}
