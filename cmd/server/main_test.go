package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syncRecorder buffers log output and records whether it was flushed
type syncRecorder struct {
	bytes.Buffer
	synced bool
}

func (s *syncRecorder) Sync() error {
	s.synced = true
	return nil
}

func TestExitCode_LogsAndFlushes(t *testing.T) {
	out := &syncRecorder{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), out, zap.DebugLevel)
	log := zap.New(core)

	code := exitCode(log, errors.New("listen tcp :8080: address already in use"))

	assert.Equal(t, 1, code)
	assert.True(t, out.synced)
	assert.Contains(t, out.String(), `"level":"error"`)
	assert.Contains(t, out.String(), `"msg":"server stopped"`)
	assert.Contains(t, out.String(), "address already in use")
}
