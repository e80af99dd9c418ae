package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NoArgsPrintsUsageAndExits(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
}

func TestParse_Defaults(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"program.ptl"}, out)
	require.NoError(t, err)
	assert.False(t, shouldExit)
	require.NotNil(t, cfg)
	assert.Equal(t, "program.ptl", cfg.SourcePath)
	assert.Equal(t, "manifests", cfg.ManifestsPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.HealthcheckPort)
}

func TestParse_OverridesAndFlags(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{
		"-manifests", "task-manifests",
		"-config", "engine.hcl",
		"-healthcheck-port", "9091",
		"-log-format", "text",
		"-log-level", "debug",
		"program.ptl",
	}, out)
	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, "task-manifests", cfg.ManifestsPath)
	assert.Equal(t, "engine.hcl", cfg.EngineConfig)
	assert.Equal(t, 9091, cfg.HealthcheckPort)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_InvalidLogFormat(t *testing.T) {
	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"-log-format", "xml", "program.ptl"}, out)
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParse_InvalidLogLevel(t *testing.T) {
	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"-log-level", "verbose", "program.ptl"}, out)
	require.Error(t, err)
}

func TestParse_UnknownFlag(t *testing.T) {
	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"--not-a-flag"}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag provided but not defined")
}
