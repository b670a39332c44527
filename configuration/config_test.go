package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromPathParsesValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"clients":   {"address": "239.0.0.1", "port": 9001},
		"proposers": {"address": "239.0.0.2", "port": 9002},
		"acceptors": {"address": "239.0.0.3", "port": 9003},
		"learners":  {"address": "239.0.0.4", "port": 9004},
		"acceptorCount": 3,
		"pipelineWindow": 8
	}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "239.0.0.1:9001", cfg.Clients.String())
	assert.Equal(t, 3, cfg.AcceptorCount)
	assert.Equal(t, 8, cfg.PipelineWindow)
	assert.Equal(t, 2, cfg.Quorum())
}

func TestQuorumForVariousAcceptorCounts(t *testing.T) {
	cases := map[int]int{1: 1, 3: 2, 5: 3, 4: 3}
	for count, want := range cases {
		cfg := &Config{AcceptorCount: count}
		assert.Equal(t, want, cfg.Quorum(), "acceptorCount=%d", count)
	}
}

func TestLoadFromPathRejectsMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFromPathRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `not json`)
	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestLoadFromPathDefaultsOmittedAcceptorCount(t *testing.T) {
	path := writeConfig(t, `{
		"clients":   {"address": "239.0.0.1", "port": 9001},
		"proposers": {"address": "239.0.0.2", "port": 9002},
		"acceptors": {"address": "239.0.0.3", "port": 9003},
		"learners":  {"address": "239.0.0.4", "port": 9004}
	}`)
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.AcceptorCount)
}

func TestLoadFromPathRejectsNegativeAcceptorCount(t *testing.T) {
	path := writeConfig(t, `{
		"clients":   {"address": "239.0.0.1", "port": 9001},
		"proposers": {"address": "239.0.0.2", "port": 9002},
		"acceptors": {"address": "239.0.0.3", "port": 9003},
		"learners":  {"address": "239.0.0.4", "port": 9004},
		"acceptorCount": -1
	}`)
	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestLoadFromPathRejectsNegativePipelineWindow(t *testing.T) {
	path := writeConfig(t, `{
		"clients":   {"address": "239.0.0.1", "port": 9001},
		"proposers": {"address": "239.0.0.2", "port": 9002},
		"acceptors": {"address": "239.0.0.3", "port": 9003},
		"learners":  {"address": "239.0.0.4", "port": 9004},
		"acceptorCount": 3,
		"pipelineWindow": -1
	}`)
	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestLoadFromPathRejectsMissingEndpoint(t *testing.T) {
	path := writeConfig(t, `{
		"clients":   {"address": "239.0.0.1", "port": 9001},
		"proposers": {"address": "239.0.0.2", "port": 9002},
		"acceptors": {"address": "", "port": 0},
		"learners":  {"address": "239.0.0.4", "port": 9004},
		"acceptorCount": 3
	}`)
	_, err := LoadFromPath(path)
	assert.Error(t, err)
}
