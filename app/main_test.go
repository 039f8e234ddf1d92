package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobcards/app/listing"
	"github.com/umputun/jobcards/app/persistence"
)

func Test_setupLogsWithLogsDisabled(t *testing.T) {
	opts.Log.Enabled = false
	opts.Log.Filename = "/tmp/not-used.log"
	assert.Equal(t, os.Stdout, setupLogs())
}

func Test_setupLogsToStdout(t *testing.T) {
	opts.Log.Enabled = true
	opts.Log.Filename = ""
	assert.Equal(t, os.Stdout, setupLogs())
}

func Test_setupLogsToFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "jobcards.log")

	opts.Log.Enabled = true
	opts.Log.Filename = fname
	opts.Log.MaxSize = 100
	opts.Log.MaxBackups = 7
	opts.Log.MaxAge = 0
	opts.Log.EnabledCompress = false
	defer func() { opts.Log.Enabled, opts.Log.Filename = false, "" }()

	out := setupLogs()
	assert.IsType(t, &lumberjack.Logger{}, out)

	logger := out.(*lumberjack.Logger)
	assert.Equal(t, fname, logger.Filename)
	assert.Equal(t, 100, logger.MaxSize)
	assert.Equal(t, 7, logger.MaxBackups)
	assert.Equal(t, 0, logger.MaxAge)
	assert.False(t, logger.Compress)
}

func Test_validateBaseURL(t *testing.T) {
	tests := []struct{ name, input, want string }{
		{"empty string", "", ""},
		{"root path", "/", ""},
		{"path without trailing slash", "/jobs", "/jobs"},
		{"path with trailing slash", "/jobs/", "/jobs"},
		{"no leading slash", "jobs", "/jobs"},
		{"multi-segment path", "/app/jobs", "/app/jobs"},
		{"multi-segment with trailing slash", "/app/jobs/", "/app/jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validateBaseURL(tt.input))
		})
	}
}

func Test_makeStorage(t *testing.T) {
	defer func() { opts.Storage.Type, opts.Storage.Path = "file", "var" }()

	t.Run("memory", func(t *testing.T) {
		opts.Storage.Type = "memory"
		st, err := makeStorage()
		require.NoError(t, err)
		assert.IsType(t, &persistence.MemoryStore{}, st)
		assert.Equal(t, "memory", st.String())
	})

	t.Run("file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		opts.Storage.Type, opts.Storage.Path = "file", dir
		st, err := makeStorage()
		require.NoError(t, err)
		assert.IsType(t, &persistence.FileStore{}, st)
		assert.DirExists(t, dir)

		require.NoError(t, st.Save("cards", []byte(`[]`)))
		assert.FileExists(t, filepath.Join(dir, "cards.json"))
	})

	t.Run("sqlite in directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db")
		opts.Storage.Type, opts.Storage.Path = "sqlite", dir
		st, err := makeStorage()
		require.NoError(t, err)
		defer st.(*persistence.SQLiteStore).Close()
		assert.FileExists(t, filepath.Join(dir, "jobcards.db"))
	})

	t.Run("sqlite file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "custom.db")
		opts.Storage.Type, opts.Storage.Path = "sqlite", dbPath
		st, err := makeStorage()
		require.NoError(t, err)
		defer st.(*persistence.SQLiteStore).Close()
		assert.FileExists(t, dbPath)
	})

	t.Run("unknown", func(t *testing.T) {
		opts.Storage.Type = "redis"
		_, err := makeStorage()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown storage type "redis"`)
	})
}

func Test_makeOptions(t *testing.T) {
	defer func() { opts.Options = "" }()

	opts.Options = ""
	res, err := makeOptions()
	require.NoError(t, err)
	assert.Equal(t, listing.DefaultOptions(), res)

	fname := filepath.Join(t.TempDir(), "options.yml")
	require.NoError(t, os.WriteFile(fname, []byte("skills: [Go, Rust]\n"), 0o600))
	opts.Options = fname
	res, err = makeOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Rust"}, res.Skills)
	assert.Equal(t, listing.DefaultOptions().Time, res.Time)

	opts.Options = filepath.Join(t.TempDir(), "missing.yml")
	_, err = makeOptions()
	require.Error(t, err)
}

func Test_dumpOptionsSchema(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, dumpOptionsSchema(&buf))

	var schema map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &schema))
	assert.Equal(t, "Jobcards Options Schema", schema["title"])
	assert.Contains(t, buf.String(), "job_type")
}

type optionsSetterMock struct {
	mu  sync.Mutex
	got []listing.Options
}

func (m *optionsSetterMock) SetOptions(o listing.Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, o)
	return nil
}

func (m *optionsSetterMock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.got)
}

func Test_watchOptions(t *testing.T) {
	defer func() { opts.Options, opts.OptionsUpdate = "", 0 }()

	fname := filepath.Join(t.TempDir(), "options.yml")
	require.NoError(t, os.WriteFile(fname, []byte("skills: [Go]\n"), 0o600))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(fname, past, past))
	opts.Options, opts.OptionsUpdate = fname, 20*time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mock := &optionsSetterMock{}
	require.NoError(t, watchOptions(ctx, mock))

	require.NoError(t, os.WriteFile(fname, []byte("skills: [Go, Zig]\n"), 0o600))
	recent := time.Now().Add(-5 * time.Second)
	require.NoError(t, os.Chtimes(fname, recent, recent))

	require.Eventually(t, func() bool { return mock.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	mock.mu.Lock()
	assert.Equal(t, []string{"Go", "Zig"}, mock.got[0].Skills)
	mock.mu.Unlock()

	opts.Options = filepath.Join(t.TempDir(), "missing.yml")
	require.Error(t, watchOptions(ctx, mock))
}
