package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
)

func writeSnapshot(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadSnapshot(t *testing.T) {
	p := writeSnapshot(t, t.TempDir(), "a.json",
		`[{"file_path":"合集系列/foo bar","file_size":42,"upload_timestamp":1700000000}]`)

	records, err := LoadSnapshot(p)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, FileRecord{Path: "合集系列/foo bar", Size: 42, UploadedAt: 1700000000}, records[0])
}

func TestLoadSnapshot_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSnapshot(filepath.Join(dir, "missing.json"))
	assert.Equal(t, apperrors.ErrCodeSnapshotNotFound, apperrors.GetCode(err))

	bad := writeSnapshot(t, dir, "bad.json", `{"not":"an array"}`)
	_, err = LoadSnapshot(bad)
	assert.Equal(t, apperrors.ErrCodeSnapshotCorrupt, apperrors.GetCode(err))
}

func TestLoad_SourcesInOrderWithFilter(t *testing.T) {
	// Given: a main bucket and a second bucket scoped to one collection
	dir := t.TempDir()
	main := writeSnapshot(t, dir, "main.json", `[
		{"file_path":"合集系列/foo bar","file_size":1,"upload_timestamp":1},
		{"file_path":"合集系列/foo baz","file_size":1,"upload_timestamp":1}
	]`)
	extra := writeSnapshot(t, dir, "extra.json", `[
		{"file_path":"合集系列/浮士德galgame游戏合集/qux","file_size":1,"upload_timestamp":1},
		{"file_path":"合集系列/elsewhere/zzz","file_size":1,"upload_timestamp":1}
	]`)

	// When: loading both
	c, err := Load(context.Background(), DefaultTrimPrefix, []Source{
		{Name: "main", Path: main},
		{Name: "extra", Path: extra, IncludePrefix: "合集系列/浮士德galgame游戏合集"},
	})

	// Then: main entries come first and the filter applies to extra only
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())
	assert.Equal(t, "foo bar", c.At(0).ID)
	assert.Equal(t, "foo baz", c.At(1).ID)
	assert.Equal(t, "浮士德galgame游戏合集/qux", c.At(2).ID)
}

func TestLoadSources_FailsOnAnyError(t *testing.T) {
	dir := t.TempDir()
	ok := writeSnapshot(t, dir, "ok.json", `[]`)

	_, err := LoadSources(context.Background(), []Source{
		{Name: "ok", Path: ok},
		{Name: "missing", Path: filepath.Join(dir, "missing.json")},
	})

	assert.Error(t, err)
}

func TestLoadSources_NoSources(t *testing.T) {
	batches, err := LoadSources(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, batches)
}
