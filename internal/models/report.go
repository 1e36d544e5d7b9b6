package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Record is the vehicle record accepted at the HTTP boundary
type Record struct {
	ID    int64   `json:"id" validate:"required,gt=0"`
	Name  string  `json:"name" validate:"required,max=255"`
	Price float64 `json:"price" validate:"gte=0"`
}

// RenderMode distinguishes single-record and collection renders
type RenderMode string

const (
	ModeSingle     RenderMode = "single"
	ModeCollection RenderMode = "collection"
)

// RenderRecord is an audit row describing one finished render request
type RenderRecord struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
	RequestID   string         `json:"request_id,omitempty" gorm:"size:64;index"`
	Template    string         `json:"template" gorm:"size:255;not null"`
	Digest      string         `json:"digest,omitempty" gorm:"size:64"`
	Format      string         `json:"format" gorm:"size:16;not null"`
	Mode        RenderMode     `json:"mode" gorm:"size:16;not null"`
	RecordCount int            `json:"record_count"`
	PageCount   int            `json:"page_count"`
	SizeBytes   int            `json:"size_bytes"`
	Stage       Stage          `json:"stage" gorm:"size:32;not null"`
	FailedStage Stage          `json:"failed_stage,omitempty" gorm:"size:32"`
	Error       string         `json:"error,omitempty" gorm:"size:1000"`
	DurationMS  int64          `json:"duration_ms"`
	Parameters  JSON           `json:"parameters,omitempty"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for the RenderRecord model
func (RenderRecord) TableName() string {
	return "render_records"
}

// IsCompleted returns true if the render reached the done stage
func (r *RenderRecord) IsCompleted() bool {
	return r.Stage == StageDone
}

// IsFailed returns true if the render failed
func (r *RenderRecord) IsFailed() bool {
	return r.Stage == StageFailed
}

// JSON is a custom type for handling JSON columns
type JSON map[string]interface{}

// GormDBDataType выбирает тип колонки под диалект
func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}

// Value implements the driver.Valuer interface for JSON
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface for JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON", value)
	}

	return json.Unmarshal(bytes, j)
}

// IsEmpty reports whether the map holds no keys
func (j JSON) IsEmpty() bool {
	return len(j) == 0
}
