package v1

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	config, err := Load("")
	require.Nil(t, err)
	assert.Equal(t, float32(10), config.Nameserver.QPS)
	assert.Equal(t, 10*time.Minute, config.Reconcile.ResyncReady.Duration)
	assert.Equal(t, 30*time.Second, config.Reconcile.ResyncNotReady.Duration)
	assert.False(t, config.Reconcile.RevokeUnclaimed)
	assert.Nil(t, config.Integrations.ExternalDNS)
}

func TestLoadMergesFileWithDefaults(t *testing.T) {
	contents := `
nameserver:
  qps: 50
reconcile:
  revokeUnclaimed: true
integrations:
  externalDNS:
    domainFormat: "%s.dns.example.com"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte(contents), 0o644))

	config, err := Load(path)
	require.Nil(t, err)
	// Explicit values win, everything else falls back to the defaults
	assert.Equal(t, float32(50), config.Nameserver.QPS)
	assert.Equal(t, 20, config.Nameserver.Burst)
	assert.True(t, config.Reconcile.RevokeUnclaimed)
	assert.Equal(t, 10*time.Minute, config.Reconcile.ResyncReady.Duration)
	require.NotNil(t, config.Integrations.ExternalDNS)
	assert.Equal(t, "%s.dns.example.com", config.Integrations.ExternalDNS.DomainFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NotNil(t, err)
}
