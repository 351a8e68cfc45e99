package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitByConfig_TextFormat(t *testing.T) {
	err := initByConfig(Config{Level: "debug", Format: "text", Time: "2006-01-02"})
	require.NoError(t, err)

	adapter, ok := logger.(*logrusAdapter)
	require.True(t, ok)
	assert.True(t, adapter.entry.Logger.IsLevelEnabled(logrus.DebugLevel))
}

func TestInitByConfig_InvalidLevel(t *testing.T) {
	err := initByConfig(Config{Level: "not-a-level", Format: "text"})
	assert.Error(t, err)
}

func TestInitByConfig_InvalidFormat(t *testing.T) {
	err := initByConfig(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestBuildFields_Sorted(t *testing.T) {
	// buildFields must produce a deterministic, sorted field order so log
	// lines are diffable across runs.
	entry := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{"b": 2, "a": "x"})
	assert.Equal(t, "a=x,b=2", buildFields(entry))
}

func TestLogger_WithFieldsChaining(t *testing.T) {
	require.NoError(t, initByConfig(Config{Level: "info", Format: "text", Time: "2006-01-02"}))

	l := logger.WithField("actor", "ingress").WithError(assert.AnError)
	adapter, ok := l.(*logrusAdapter)
	require.True(t, ok)
	assert.Equal(t, "ingress", adapter.entry.Data["actor"])
	assert.Equal(t, assert.AnError, adapter.entry.Data["error"])
}
