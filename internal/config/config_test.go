package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/campus-kit/internal/danxi"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendDir, cfg.Cache.Backend)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, danxi.DefaultEndpoints(), cfg.DanXi)
	require.Equal(t, "https://my.fudan.edu.cn", cfg.Campus.My)
	require.NotEmpty(t, cfg.CredentialPath)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timeout: 5s
cache:
  backend: redis
  redis_addr: localhost:6379
danxi:
  auth: https://auth.example.org/api
`), 0o600))
	t.Setenv("CAMPUS_CACHE_REDIS_DB", "3")
	t.Setenv("CAMPUS_USER_AGENT", "campus-kit/test")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, BackendRedis, cfg.Cache.Backend)
	require.Equal(t, 3, cfg.Cache.RedisDB)
	require.Equal(t, "campus-kit/test", cfg.UserAgent)
	require.Equal(t, "https://auth.example.org/api", cfg.DanXi.Auth)
	require.Equal(t, danxi.DefaultForumURL, cfg.DanXi.Forum)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "cache:\n  backend: s3\n",
		"postgres no dsn":   "cache:\n  backend: postgres\n",
		"redis no addr":     "cache:\n  backend: redis\n",
		"oauth2 no client":  "oauth2:\n  token_url: https://idp.example.org/token\n",
		"bad endpoint":      "danxi:\n  forum: not a url\n",
		"non-positive wait": "timeout: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
