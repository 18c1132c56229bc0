//go:build !integration

package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExport struct {
	body string
	err  error
}

func (f fakeExport) ExportCSV(_ context.Context, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, err := io.WriteString(w, f.body)
	return 1, err
}

func (fakeExport) ExportSnapshot(context.Context, io.Writer) error { return nil }

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunOnceWritesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBackupScheduler("0 3 * * *", dir, 2, fakeExport{body: "user_id\n1\n"}, nil)
	require.NoError(t, err)

	base := time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		s.now = func() time.Time { return at }
		path, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "user_id\n1\n", string(b))
	}

	assert.Equal(t, []string{"recipients-20250503-030000.csv", "recipients-20250504-030000.csv"}, listDir(t, dir))
}

func TestRunOnceLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBackupScheduler("@daily", dir, 3, fakeExport{err: errors.New("db locked")}, nil)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, listDir(t, dir))
}

func TestPruneIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	s, err := NewBackupScheduler("@hourly", dir, 1, fakeExport{body: "user_id\n"}, nil)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, listDir(t, dir), 2)
}

func TestNewBackupSchedulerValidates(t *testing.T) {
	_, err := NewBackupScheduler("not a cron", t.TempDir(), 1, fakeExport{}, nil)
	assert.Error(t, err)
	_, err = NewBackupScheduler("@daily", "", 1, fakeExport{}, nil)
	assert.Error(t, err)
}

func TestStartStopIsIdempotent(t *testing.T) {
	s, err := NewBackupScheduler("@every 1h", filepath.Join(t.TempDir(), "nested"), 1, fakeExport{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
	_, err = os.Stat(s.dir)
	assert.NoError(t, err)
}
