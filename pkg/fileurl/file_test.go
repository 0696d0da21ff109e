package fileurl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePath(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "a", "b", "c.json")

	require.NoError(t, CreatePath(dst, os.ModePerm))
	assert.True(t, IsDir(filepath.Join(dir, "a", "b")))
	assert.False(t, IsExist(dst))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "state.json")

	require.NoError(t, WriteFileAtomic(dst, []byte("first"), 0644))
	require.NoError(t, WriteFileAtomic(dst, []byte("second"), 0644))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	assert.True(t, IsFile(dst))

	// No temporary files left behind
	// 不应残留临时文件
	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
