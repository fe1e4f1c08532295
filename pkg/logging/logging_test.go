package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewFormats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := New("debug", format)
		require.NoError(t, err, format)
		assert.True(t, l.Core().Enabled(zap.DebugLevel))
	}

	_, err := New("info", "xml")
	assert.Error(t, err)
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	l, err := New("loud", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	g := NewGormLogger(zap.New(core))
	fc := func() (string, int64) { return "SELECT 1", 1 }

	g.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	g.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	g.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "query failed", entries[0].Message)
	assert.Equal(t, "slow query", entries[1].Message)

	g.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), fc, errors.New("hidden"))
	assert.Len(t, logs.All(), 2)
}
