package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	assert.False(t, New(false).Core().Enabled(zapcore.DebugLevel))
	assert.True(t, New(true).Core().Enabled(zapcore.DebugLevel))
}

func TestComponentToleratesNil(t *testing.T) {
	logger := Component(nil, "import")
	assert.NotNil(t, logger)
	logger.Info("discarded")
}
