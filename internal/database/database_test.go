package database

import (
	"io"
	"testing"

	"report_renderer/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseSQLite(t *testing.T) {
	db, err := NewDatabase(Config{Driver: DriverSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	defer Close(db)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, AutoMigrate(db, logger))

	assert.True(t, db.Migrator().HasTable(&models.RenderRecord{}))

	rec := models.RenderRecord{
		Template:   "report.hcl",
		Format:     "pdf",
		Mode:       models.ModeSingle,
		Stage:      models.StageDone,
		Parameters: models.JSON{"company": "ACME"},
	}
	require.NoError(t, db.Create(&rec).Error)

	var loaded models.RenderRecord
	require.NoError(t, db.First(&loaded, rec.ID).Error)
	assert.Equal(t, "ACME", loaded.Parameters["company"])
	assert.Equal(t, models.StageDone, loaded.Stage)
}

func TestNewDatabaseUnknownDriver(t *testing.T) {
	_, err := NewDatabase(Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}
