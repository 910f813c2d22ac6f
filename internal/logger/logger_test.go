package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(logrus.InfoLevel) })

	require.NoError(t, Configure("debug"))
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	require.NoError(t, Configure("WARN"))
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, Configure(""))
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestConfigure_InvalidLevel(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(logrus.InfoLevel) })

	err := Configure("loud")
	assert.Error(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestConfigure_EnvFallback(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(logrus.InfoLevel) })
	t.Setenv("LOG_LEVEL", "error")

	require.NoError(t, Configure(""))
	assert.Equal(t, logrus.ErrorLevel, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	WithFields(logrus.Fields{"vpc_id": "vpc-1"}).Info("created VPC")

	assert.Contains(t, buf.String(), "created VPC")
	assert.Contains(t, buf.String(), "vpc_id=vpc-1")
}
