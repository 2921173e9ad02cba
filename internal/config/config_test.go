package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, "calendar/ics", cfg.MirrorDir)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
	assert.Equal(t, 500, cfg.MobileWidth)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_NormalizesPartialConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
timezone: Europe/London
week_start: Sunday
vault:
  root: /srv/notes
  events_dir: /Calendar/
mirror_dir: ""
ics:
  - url: https://example.com/a.ics
  - id: work
    url: https://example.com/b.ics
google:
  api_key: key
  calendars: [primary]
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, time.Sunday, cfg.FirstDay())
	assert.Equal(t, "Calendar", cfg.Vault.EventsDir)
	assert.Equal(t, "/srv/notes", cfg.Vault.Root)
	assert.Equal(t, "calendar/ics", cfg.MirrorDir)
	assert.Equal(t, defaultRefresh, cfg.RefreshCron)
	assert.Equal(t, "feed1", cfg.ICS[0].ID)
	assert.Equal(t, "work", cfg.ICS[1].ID)
	assert.True(t, cfg.GoogleEnabled())
	assert.Equal(t, "Europe/London", cfg.Location().String())
}

func TestLoad_CacheDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_dir: \" /tmp/vaultcal-cache \"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vaultcal-cache", cfg.CacheDir)

	require.NoError(t, os.WriteFile(path, []byte("cache_dir: \"\"\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
}

func TestLoad_BadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: ["), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "config: parse")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing url",
			cfg:  Config{ICS: []ICSConfig{{ID: "a"}}},
			want: "has no url",
		},
		{
			name: "duplicate id",
			cfg:  Config{ICS: []ICSConfig{{ID: "a", URL: "u"}, {ID: "a", URL: "v"}}},
			want: "duplicate ics feed id",
		},
		{
			name: "bad timezone",
			cfg:  Config{Timezone: "Mars/Olympus"},
			want: "timezone",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorContains(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestLocation_Fallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Local, (&Config{}).Location())
	assert.Equal(t, time.Local, (&Config{Timezone: "Nowhere/Nothing"}).Location())
	assert.Equal(t, time.Monday, (&Config{}).FirstDay())
}

func TestSave_RejectsEmpty(t *testing.T) {
	t.Parallel()

	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
