package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
)

func TestLoadTLSConfig_Nil(t *testing.T) {
	cfg, err := LoadTLSConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadTLSConfig_ServerNameOnly(t *testing.T) {
	cfg, err := LoadTLSConfig(&config.TLSConfig{ServerName: "etcd.local"})
	require.NoError(t, err)
	assert.Equal(t, "etcd.local", cfg.ServerName)
	assert.Nil(t, cfg.RootCAs)
	assert.Empty(t, cfg.Certificates)
}

func TestLoadTLSConfig_CertWithoutKey(t *testing.T) {
	_, err := LoadTLSConfig(&config.TLSConfig{Cert: "client.pem"})
	assert.Error(t, err)
}

func TestLoadTLSConfig_InvalidCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := LoadTLSConfig(&config.TLSConfig{CA: path})
	assert.Error(t, err)
}

func TestLoadTLSConfig_MissingCA(t *testing.T) {
	_, err := LoadTLSConfig(&config.TLSConfig{CA: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}
