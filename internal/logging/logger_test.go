package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("chatty"))
}

func TestNew(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger)

	dev, err := New(DevelopmentConfig())
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestNamedAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := Wrap(zap.New(core)).Named("orders").With(zap.String("order_id", "o-1"))

	logger.Info("submitted")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "orders", entry.LoggerName)
	assert.Equal(t, "o-1", entry.ContextMap()["order_id"])
}

func TestGlobal(t *testing.T) {
	prev := L()
	defer SetGlobal(prev)

	core, logs := observer.New(zapcore.InfoLevel)
	SetGlobal(Wrap(zap.New(core)))
	L().Info("hello")
	zap.L().Info("via zap")

	assert.Equal(t, 2, logs.Len())
}
