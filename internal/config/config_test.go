package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "./configs/rules.yaml", cfg.GetRulesPath())
	assert.Equal(t, "./outputs", cfg.GetReportDir())
	assert.Equal(t, ScanConfig{HeadersOnly: true, MaxBodySize: 20000}, cfg.GetScan())
	assert.Empty(t, cfg.GetFeatures().SuspiciousTLDs)

	store, err := cfg.GetStore()
	require.NoError(t, err)
	assert.True(t, store.Enabled)
	assert.Equal(t, "memory", store.Type)
	assert.Equal(t, 720*time.Hour, store.Retention)
	assert.Equal(t, time.Hour, store.CleanupFrequency)

	server := cfg.GetServer()
	assert.Equal(t, "X-Phish-Severity", server.SeverityHeader)
	assert.Equal(t, 10026, server.PostfixPort)
	assert.False(t, server.TagSubject)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
scan:
  headers_only: false
features:
  suspicious_tlds: [zip, mov]
store:
  type: sqlite
  retention: 48h
server:
  tag_subject: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.False(t, cfg.GetScan().HeadersOnly)
	assert.Equal(t, 20000, cfg.GetScan().MaxBodySize)
	assert.Equal(t, []string{"zip", "mov"}, cfg.GetFeatures().SuspiciousTLDs)

	store, err := cfg.GetStore()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", store.Type)
	assert.Equal(t, 48*time.Hour, store.Retention)
	assert.True(t, cfg.GetServer().TagSubject)
}

func TestGetStore_InvalidDuration(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("store.retention", "forever")

	_, err := cfg.GetStore()
	assert.Error(t, err)
}

func TestNewFromFile_Missing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
