package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_ParsesLevel(t *testing.T) {
	log, err := New("debug")
	require.NoError(t, err)
	defer Sync(log)

	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_FallsBackToInfo(t *testing.T) {
	log, err := New("not-a-level")
	require.NoError(t, err)
	defer Sync(log)

	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	Sync(nil)
}
