package main

import (
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLoggingToFile(t *testing.T) {
	defer log.SetOutput(log.StandardLogger().Out)
	defer log.SetLevel(log.GetLevel())

	path := filepath.Join(t.TempDir(), "jobwatch.log")
	closer, err := configureLogging(LogConfig{Level: "debug", File: path, MaxSizeMB: 1}, true)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.Debug("hello")
	assert.FileExists(t, path)
}

func TestConfigureLoggingRejectsBadLevel(t *testing.T) {
	_, err := configureLogging(LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
