package logger

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(log.New(&buf, "", 0), Config{LogLevel: Warn})

	l.Info(context.Background(), "info %s", "message")
	assert.Empty(t, buf.String())

	l.Warn(context.Background(), "warn %s", "message")
	assert.Contains(t, buf.String(), "warn message")

	l.Error(context.Background(), "error %s", "message")
	assert.Contains(t, buf.String(), "error message")
}

func TestLogMode(t *testing.T) {
	var buf bytes.Buffer
	l := New(log.New(&buf, "", 0), Config{LogLevel: Silent})

	l.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	l.LogMode(Info).Info(context.Background(), "visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := NewZerologLogger(zl, Config{LogLevel: Info})

	l.Info(context.Background(), "scan complete")
	assert.Contains(t, buf.String(), "scan complete")

	buf.Reset()
	l.LogMode(Error).Warn(context.Background(), "suppressed")
	assert.Empty(t, buf.String())
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZapLogger(zap.New(core), Config{LogLevel: Info})

	l.Warn(context.Background(), "fallback scan")
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "fallback scan", logs.All()[0].Message)
}

func TestLogrusAdapter(t *testing.T) {
	var buf bytes.Buffer
	ll := logrus.New()
	ll.SetOutput(&buf)
	l := NewLogrusLogger(ll, Config{LogLevel: Info})

	l.Error(context.Background(), "template missing")
	assert.Contains(t, buf.String(), "template missing")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Info, ParseLevel("info"))
	assert.Equal(t, Error, ParseLevel("error"))
	assert.Equal(t, Silent, ParseLevel("silent"))
	assert.Equal(t, Warn, ParseLevel("nonsense"))
	assert.Equal(t, "warn", Warn.String())
}
