package cycle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsZeroState(t *testing.T) {
	fs := &FileStore{Path: filepath.Join(t.TempDir(), "wx-state.yaml")}

	st, err := fs.Load()
	require.NoError(t, err, "first boot after power loss is not an error")
	assert.Equal(t, DeviceState{}, st)
}

func TestFileStore_RoundTrip(t *testing.T) {
	fs := &FileStore{Path: filepath.Join(t.TempDir(), "wx-state.yaml")}

	want := DeviceState{BootCount: 117, TxFailCount: 3}
	require.NoError(t, fs.Save(want))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	fs := &FileStore{Path: filepath.Join(t.TempDir(), "wx-state.yaml")}

	require.NoError(t, fs.Save(DeviceState{BootCount: 1}))
	require.NoError(t, fs.Save(DeviceState{BootCount: 2, TxFailCount: 1}))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, DeviceState{BootCount: 2, TxFailCount: 1}, got)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wx-state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("boot_count: [not a number"), 0o644))

	fs := &FileStore{Path: path}
	_, err := fs.Load()
	assert.Error(t, err)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs := &FileStore{Path: filepath.Join(dir, "wx-state.yaml")}
	require.NoError(t, fs.Save(DeviceState{BootCount: 9}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "wx-state.yaml", entries[0].Name())
}

func TestMemStore(t *testing.T) {
	m := &MemStore{}

	st, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DeviceState{}, st)

	require.NoError(t, m.Save(DeviceState{BootCount: 5, TxFailCount: 2}))
	st, err = m.Load()
	require.NoError(t, err)
	assert.Equal(t, DeviceState{BootCount: 5, TxFailCount: 2}, st)
}
