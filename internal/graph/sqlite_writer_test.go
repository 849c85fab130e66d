package graph

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestSQLiteWriter_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "items.db")
	w, err := NewSQLiteWriter(dbPath, true, nil)
	require.NoError(t, err)
	assert.True(t, w.ContainsBlindReportMode())

	ctx := context.Background()
	root := newDir(0, "phone.ufdr", nil)
	root.HasChildren = true
	require.NoError(t, w.Submit(ctx, root))

	created := time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC)
	file := NewItem(1, "phone.ufdr/fs/DCIM/a.jpg")
	file.SetParent(root)
	file.SetLength(2048)
	file.IsDeleted = true
	file.Created = &created
	file.IDInSource = "f-1_ufdr:/files/a.jpg"
	file.Content = &ContentRef{Kind: ContentArchive, Path: "ufdr:/files/a.jpg", ArchiveID: "arc-1"}
	file.Metadata.Add("ufed:extractionName", "Logical")
	file.Metadata.Add("ufed:Tag", "one")
	file.Metadata.Add("ufed:Tag", "two")
	require.NoError(t, w.Submit(ctx, file))

	w.IncDiscoveredCount(2)
	w.IncDiscoveredVolume(2048)
	require.NoError(t, w.Close())

	items, err := LoadItems(dbPath)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.True(t, items[0].IsRoot)
	assert.True(t, items[0].IsDir)
	assert.Nil(t, items[0].Length)

	got := items[1]
	assert.Equal(t, "phone.ufdr", got.ParentPath)
	assert.Equal(t, 0, got.ParentID)
	assert.Equal(t, "a.jpg", got.Name)
	assert.True(t, got.IsDeleted)
	require.NotNil(t, got.Length)
	assert.Equal(t, int64(2048), *got.Length)
	require.NotNil(t, got.Created)
	assert.True(t, created.Equal(*got.Created))
	require.NotNil(t, got.Content)
	assert.Equal(t, ContentArchive, got.Content.Kind)
	assert.Equal(t, "arc-1", got.Content.ArchiveID)
	assert.Equal(t, []string{"one", "two"}, got.Metadata.Values("ufed:Tag"))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var count, volume int64
	require.NoError(t, db.QueryRow("SELECT discovered_count, discovered_volume FROM run_stats").Scan(&count, &volume))
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(2048), volume)
}

func TestSQLiteWriter_DuplicatePathFails(t *testing.T) {
	w, err := NewSQLiteWriter(filepath.Join(t.TempDir(), "dup.db"), false, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx := context.Background()
	require.NoError(t, w.Submit(ctx, newDir(0, "root", nil)))
	err = w.Submit(ctx, newDir(1, "root", nil))
	assert.Error(t, err)
}

func TestSQLiteWriter_SubmitCancelled(t *testing.T) {
	w, err := NewSQLiteWriter(filepath.Join(t.TempDir(), "c.db"), false, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Submit(ctx, newDir(0, "root", nil)), context.Canceled)
}
