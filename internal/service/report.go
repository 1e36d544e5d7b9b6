package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"report_renderer/internal/datasource"
	"report_renderer/internal/export"
	"report_renderer/internal/models"
	"report_renderer/internal/render"
	"report_renderer/internal/template"

	"github.com/sirupsen/logrus"
)

const (
	// Лимиты пагинации журнала
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrNilRecords is returned when a collection render receives no slice at all.
// An empty slice is valid and renders an empty document.
var ErrNilRecords = errors.New("records must not be nil")

// ReportService интерфейс сервиса рендеринга отчетов
type ReportService interface {
	RenderSingle(ctx context.Context, record any, req Request) (*export.Result, error)
	RenderCollection(ctx context.Context, records []any, req Request) (*export.Result, error)
	ListRenders(ctx context.Context, params ListRenderParams) (*RenderList, error)
}

// TemplateProvider отдает скомпилированные шаблоны по ключу хранилища.
// *template.Cache реализует этот интерфейс.
type TemplateProvider interface {
	Get(ctx context.Context, key string) (*template.Compiled, error)
}

// Request описывает один запрос на рендеринг
type Request struct {
	Format   export.Format
	Template string
	Params   render.Params
}

// Options задает шаблоны и параметры по умолчанию
type Options struct {
	SingleTemplate     string
	CollectionTemplate string
	Parameters         map[string]string
}

// StageError wraps a pipeline failure with the last stage the request reached.
type StageError struct {
	Stage    models.Stage
	Template string
	Err      error
}

func (e *StageError) Error() string {
	if e.Template != "" {
		return fmt.Sprintf("render failed after stage %s (template %s): %v", e.Stage, e.Template, e.Err)
	}
	return fmt.Sprintf("render failed after stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Renderer реализация сервиса рендеринга
type Renderer struct {
	templates TemplateProvider
	audit     AuditRepository
	options   Options
	logger    *logrus.Logger
}

// NewRenderer создает новый сервис рендеринга
func NewRenderer(templates TemplateProvider, audit AuditRepository, options Options, logger *logrus.Logger) *Renderer {
	if audit == nil {
		audit = NopAuditRepository{}
	}
	return &Renderer{
		templates: templates,
		audit:     audit,
		options:   options,
		logger:    logger,
	}
}

// RenderSingle рендерит отчет по одной записи
func (s *Renderer) RenderSingle(ctx context.Context, record any, req Request) (*export.Result, error) {
	return s.run(ctx, models.ModeSingle, req, 1, func() (*datasource.DataSource, error) {
		return datasource.FromRecord(record)
	})
}

// RenderCollection рендерит отчет по коллекции записей в исходном порядке
func (s *Renderer) RenderCollection(ctx context.Context, records []any, req Request) (*export.Result, error) {
	if records == nil {
		s.logger.WithField("format", req.Format).Warn("Коллекция записей не передана")
		return nil, &StageError{Stage: models.StageReceived, Template: s.templateKey(models.ModeCollection, req), Err: ErrNilRecords}
	}
	return s.run(ctx, models.ModeCollection, req, len(records), func() (*datasource.DataSource, error) {
		return datasource.FromRecords(records)
	})
}

// run проходит стадии конвейера: шаблон, данные, заполнение, экспорт.
// Формат проверяется до обращения к кэшу и хранилищу.
func (s *Renderer) run(
	ctx context.Context,
	mode models.RenderMode,
	req Request,
	recordCount int,
	bind func() (*datasource.DataSource, error),
) (*export.Result, error) {
	start := time.Now()
	key := s.templateKey(mode, req)
	params := s.params(req)

	logger := s.logger.WithFields(logrus.Fields{
		"template":   key,
		"format":     req.Format,
		"mode":       mode,
		"records":    recordCount,
		"request_id": RequestIDFromContext(ctx),
	})

	p := &pipeline{
		stage:    models.StageReceived,
		template: key,
		record: &models.RenderRecord{
			RequestID:   RequestIDFromContext(ctx),
			Template:    key,
			Format:      string(req.Format),
			Mode:        mode,
			RecordCount: recordCount,
			Parameters:  paramsJSON(params),
		},
	}
	defer func() {
		p.record.DurationMS = time.Since(start).Milliseconds()
		p.record.Stage = p.stage
		s.saveAudit(ctx, p.record, logger)
	}()

	logger.Debug("Начало рендеринга отчета")

	format, err := export.ParseFormat(string(req.Format))
	if err != nil {
		return nil, p.fail(logger, err)
	}
	p.record.Format = string(format)

	if err := ctx.Err(); err != nil {
		return nil, p.fail(logger, err)
	}
	tpl, err := s.templates.Get(ctx, key)
	if err != nil {
		return nil, p.fail(logger, err)
	}
	p.record.Digest = tpl.Digest
	if err := p.advance(ctx, models.StageTemplateReady); err != nil {
		return nil, p.fail(logger, err)
	}

	ds, err := bind()
	if err != nil {
		return nil, p.fail(logger, err)
	}
	if err := p.advance(ctx, models.StageDataBound); err != nil {
		return nil, p.fail(logger, err)
	}

	doc, err := render.Fill(ctx, tpl, params, ds)
	if err != nil {
		return nil, p.fail(logger, err)
	}
	p.record.PageCount = len(doc.Pages)
	if err := p.advance(ctx, models.StageRendered); err != nil {
		return nil, p.fail(logger, err)
	}

	res, err := export.Export(ctx, doc, format)
	if err != nil {
		return nil, p.fail(logger, err)
	}
	p.record.SizeBytes = len(res.Data)
	if err := p.advance(ctx, models.StageExported); err != nil {
		return nil, p.fail(logger, err)
	}

	if err := p.advance(ctx, models.StageDone); err != nil {
		return nil, p.fail(logger, err)
	}

	logger.WithFields(logrus.Fields{
		"pages":    len(doc.Pages),
		"size":     len(res.Data),
		"duration": time.Since(start),
	}).Info("Отчет сформирован успешно")

	return res, nil
}

// ListRenders получает журнал рендеринга с пагинацией
func (s *Renderer) ListRenders(ctx context.Context, params ListRenderParams) (*RenderList, error) {
	// Валидация параметров пагинации
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	records, total, err := s.audit.List(ctx, params)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения журнала рендеринга")
		return nil, fmt.Errorf("ошибка получения журнала рендеринга: %w", err)
	}

	totalPages := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))

	return &RenderList{
		Renders:    records,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *Renderer) templateKey(mode models.RenderMode, req Request) string {
	if req.Template != "" {
		return req.Template
	}
	if mode == models.ModeCollection {
		return s.options.CollectionTemplate
	}
	return s.options.SingleTemplate
}

// params объединяет параметры из конфигурации с параметрами запроса.
// Параметры запроса имеют приоритет.
func (s *Renderer) params(req Request) render.Params {
	params := make(render.Params, len(s.options.Parameters)+len(req.Params))
	for k, v := range s.options.Parameters {
		params[k] = v
	}
	for k, v := range req.Params {
		params[k] = v
	}
	return params
}

func (s *Renderer) saveAudit(ctx context.Context, rec *models.RenderRecord, logger *logrus.Entry) {
	// журнал пишется и для отмененных запросов
	if err := s.audit.Create(context.WithoutCancel(ctx), rec); err != nil {
		logger.WithError(err).Warn("Ошибка записи журнала рендеринга")
	}
}

// pipeline отслеживает стадию одного запроса
type pipeline struct {
	stage    models.Stage
	template string
	record   *models.RenderRecord
}

func (p *pipeline) advance(ctx context.Context, next models.Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.stage.CanTransitionTo(next) {
		return fmt.Errorf("invalid stage transition %s -> %s", p.stage, next)
	}
	p.stage = next
	return nil
}

func (p *pipeline) fail(logger *logrus.Entry, err error) error {
	stageErr := &StageError{Stage: p.stage, Template: p.template, Err: err}

	p.record.FailedStage = p.stage
	p.record.Error = truncate(err.Error(), 1000)
	p.stage = models.StageFailed

	logger.WithFields(logrus.Fields{
		"stage": stageErr.Stage,
	}).WithError(err).Error("Ошибка рендеринга отчета")
	return stageErr
}

func paramsJSON(params render.Params) models.JSON {
	if len(params) == 0 {
		return nil
	}
	out := make(models.JSON, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
