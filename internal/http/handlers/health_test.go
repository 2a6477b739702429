package handlers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestHealthHandler_GetHealth(t *testing.T) {
	handler := NewHealthHandler("1.0.0")

	output, err := handler.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	require.NotNil(t, output)

	assert.Equal(t, "healthy", output.Body.Status)
	assert.Equal(t, "1.0.0", output.Body.Version)
	assert.NotEmpty(t, output.Body.Uptime)
	assert.NotZero(t, output.Body.CPU.Cores)
	assert.Positive(t, output.Body.Goroutines)
	assert.Equal(t, "unknown", output.Body.Database.Status)
}

func TestHealthHandler_GetHealth_WithDB(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "health.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	handler := NewHealthHandler("dev").WithDB(db)

	output, err := handler.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "healthy", output.Body.Status)
	assert.Equal(t, "ok", output.Body.Database.Status)
	assert.GreaterOrEqual(t, output.Body.Database.ResponseTimeMS, 0.0)
}
