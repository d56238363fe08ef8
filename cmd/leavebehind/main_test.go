package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajramos/leavebehind/internal/config"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigPath_Priority(t *testing.T) {
	assert.Equal(t, "/custom/config.json", getConfigPath("/custom/config.json"))

	t.Setenv(config.EnvConfigPath, "/env/config.json")
	assert.Equal(t, "/env/config.json", getConfigPath(""))

	t.Setenv(config.EnvConfigPath, "")
	assert.Contains(t, getConfigPath(""), "config")
}

func TestResolvePath(t *testing.T) {
	t.Setenv(envToken, "")
	assert.Equal(t, "/flag", resolvePath("/flag", envToken, "/fallback"))
	assert.Equal(t, "/fallback", resolvePath("", envToken, "/fallback"))

	t.Setenv(envToken, "/env/token.json")
	assert.Equal(t, "/env/token.json", resolvePath("", envToken, "/fallback"))
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, "/home/tester", expandPath("~"))
	assert.Equal(t, filepath.Join("/home/tester", "mail.db"), expandPath("~/mail.db"))
	assert.Equal(t, "/abs/mail.db", expandPath("/abs/mail.db"))
}

func TestSampleMessages(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	msgs, labels := sampleMessages(7, now)
	require.Len(t, msgs, 7)
	require.Len(t, labels, 7)

	assert.Equal(t, "seed-001", msgs[0].ID)
	assert.Equal(t, now.Unix(), msgs[0].ReceivedAt)
	assert.Greater(t, msgs[0].ReceivedAt, msgs[1].ReceivedAt)
	assert.Equal(t, "Build #102 failed", msgs[2].Subject)
	for _, l := range labels {
		assert.Contains(t, l, "INBOX")
	}
}

func TestOpenEnvironment_Local(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "mail.db")
	ctx := context.Background()

	env, err := openEnvironment(ctx, cfg, "", "")
	require.NoError(t, err)
	defer func() { assert.NoError(t, env.Close()) }()

	require.NotNil(t, env.mailbox)
	require.NotNil(t, env.recent)
	require.NotNil(t, env.state)

	ids, err := env.mailbox.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	entries := []recent.Entry{{ID: "Work", Name: "Work", Touched: time.Unix(10, 0)}}
	require.NoError(t, env.recent.Save(ctx, entries))
	got, err := env.recent.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Work", got[0].ID)
}

func TestOpenEnvironment_Bolt(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "mail.db")
	cfg.RecentBackend = config.RecentBolt
	cfg.BoltPath = filepath.Join(dir, "state.bolt")
	ctx := context.Background()

	env, err := openEnvironment(ctx, cfg, "", "")
	require.NoError(t, err)
	defer func() { assert.NoError(t, env.Close()) }()

	require.NoError(t, env.state.Save(ctx, []byte(`[]`)))
	data, ok, err := env.state.Take(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), data)
}

func TestOpenEnvironment_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "mail.db")
	cfg.Backend = "carrier-pigeon"

	env, err := openEnvironment(context.Background(), cfg, "", "")
	assert.Error(t, err)
	assert.Nil(t, env)
}

func TestHeaderTable(t *testing.T) {
	headers := map[string]services.Header{
		"a": {Sender: "ana@example.com", Subject: "Hi", Labels: []string{"INBOX", "Work"}, Received: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
	}
	data := headerTable([]string{"a", "b"}, headers)
	require.Len(t, data, 3)
	assert.Equal(t, []string{"a", "ana@example.com", "Hi", "2024-03-01 09:30", "INBOX, Work"}, data[1])
	assert.Equal(t, []string{"b", "", "", "", ""}, data[2])
}

func TestRecentTable(t *testing.T) {
	entries := []recent.Entry{
		{ID: "old", Name: "Old", Touched: time.Unix(10, 0)},
		{ID: "new", Name: "New", Touched: time.Unix(20, 0)},
	}
	data := recentTable(entries)
	require.Len(t, data, 3)
	assert.Equal(t, "new", data[1][0])
	assert.Equal(t, "old", data[2][0])
}
