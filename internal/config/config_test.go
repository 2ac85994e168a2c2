package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("release", cfg.Mode)
	req.Equal(8080, cfg.Port)
	req.Equal(int64(32768), cfg.ReadLimit)
	req.Equal(54*time.Second, cfg.PingPeriod)
	req.Equal(8, cfg.SessionCapacity)
	req.Equal(4*time.Hour, cfg.SessionTTL)
	req.Equal(time.Minute, cfg.ReapInterval)
}

func TestLoad_EnvOverride(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "nonexistent")
	t.Setenv("JAM_SESSION_CAPACITY", "4")
	t.Setenv("JAM_SESSION_TTL", "30m")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(4, cfg.SessionCapacity)
	req.Equal(30*time.Minute, cfg.SessionTTL)
}
