package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigReturnsDefaultsWhenNoPath(t *testing.T) {
	conf, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, 1500, conf.Nack.BufferCapacity)
}

func TestLoadConfigReadsFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sfu-worker-config-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("nack:\n  buffer_capacity: 42\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	conf, err := loadConfig(f.Name())
	require.NoError(t, err)
	require.Equal(t, 42, conf.Nack.BufferCapacity)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	_, err := loadConfig("/nonexistent/sfu-worker-config.yaml")
	require.Error(t, err)
}
