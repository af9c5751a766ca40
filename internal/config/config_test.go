package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nslz/broquet/pkg/er"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromFileKeyValue(t *testing.T) {
	path := writeConfig(t, "broker.conf", "port=1883\nlogFile=stdout\n")

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1883", cfg.Port)
	assert.Equal(t, "stdout", cfg.LogFile)
	assert.Empty(t, cfg.UsersDB)
}

func TestFromFileOptionalUsersDB(t *testing.T) {
	path := writeConfig(t, "broker.conf", "port=1883\nlogFile=stdout\nusersDB=./store/users.db\n")

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "./store/users.db", cfg.UsersDB)
}

func TestFromFileMissingPort(t *testing.T) {
	path := writeConfig(t, "broker.conf", "logFile=stdout\n")

	_, err := FromFile(path)
	assert.ErrorIs(t, err, er.ErrConfigMissingPort)
}

func TestFromFileMissingLogFile(t *testing.T) {
	path := writeConfig(t, "broker.conf", "port=1883\n")

	_, err := FromFile(path)
	assert.ErrorIs(t, err, er.ErrConfigMissingLogFile)
}

func TestFromFileMalformedLine(t *testing.T) {
	path := writeConfig(t, "broker.conf", "port=1883\nnot a pair\n")

	_, err := FromFile(path)
	assert.ErrorIs(t, err, er.ErrConfigMalformedLine)
}

func TestFromFileUnreadable(t *testing.T) {
	_, err := FromFile("/nonexistent/broker.conf")
	assert.Error(t, err)
}

func TestFromFileYAML(t *testing.T) {
	path := writeConfig(t, "config.yml", "server:\n  port: \"1883\"\n  logFile: stderr\n")

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1883", cfg.Port)
	assert.Equal(t, "stderr", cfg.LogFile)
}
