package service

import (
	"context"
	"fmt"

	"report_renderer/internal/models"

	"gorm.io/gorm"
)

// ListRenderParams параметры для получения журнала рендеринга
type ListRenderParams struct {
	Page     int          `json:"page" query:"page"`
	PageSize int          `json:"page_size" query:"page_size"`
	Template string       `json:"template,omitempty" query:"template"`
	Stage    models.Stage `json:"stage,omitempty" query:"stage"`
}

// RenderList результат получения журнала с пагинацией
type RenderList struct {
	Renders    []models.RenderRecord `json:"renders"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// AuditRepository интерфейс журнала рендеринга
type AuditRepository interface {
	Create(ctx context.Context, record *models.RenderRecord) error
	List(ctx context.Context, params ListRenderParams) ([]models.RenderRecord, int64, error)
}

// GormAuditRepository реализация журнала с использованием GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository создает новый журнал поверх GORM
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Create сохраняет запись журнала
func (r *GormAuditRepository) Create(ctx context.Context, record *models.RenderRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("ошибка записи журнала: %w", err)
	}
	return nil
}

// List получает записи журнала, новые первыми
func (r *GormAuditRepository) List(ctx context.Context, params ListRenderParams) ([]models.RenderRecord, int64, error) {
	var records []models.RenderRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.RenderRecord{})
	if params.Template != "" {
		query = query.Where("template = ?", params.Template)
	}
	if params.Stage != "" {
		query = query.Where("stage = ?", params.Stage)
	}

	// Подсчет общего количества
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета записей журнала: %w", err)
	}

	// Получение записей с пагинацией
	offset := (params.Page - 1) * params.PageSize
	if err := query.Order("created_at DESC").Order("id DESC").
		Offset(offset).
		Limit(params.PageSize).
		Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка получения записей журнала: %w", err)
	}

	return records, total, nil
}

// NopAuditRepository используется, когда база данных журнала отключена
type NopAuditRepository struct{}

func (NopAuditRepository) Create(context.Context, *models.RenderRecord) error {
	return nil
}

func (NopAuditRepository) List(context.Context, ListRenderParams) ([]models.RenderRecord, int64, error) {
	return []models.RenderRecord{}, 0, nil
}
