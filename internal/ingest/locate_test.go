package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportHeader = `<?xml version="1.0" encoding="utf-8"?>
<project id="1" name="x" extractionType="Logical"><sourceExtractions/></project>`

func writeUFDR(t *testing.T, dir, name, manifest string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	if manifest != "" {
		w, err := zw.Create(manifest)
		require.NoError(t, err)
		_, err = io.WriteString(w, reportHeader)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLocateReport_XMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Report.XML")
	require.NoError(t, os.WriteFile(path, []byte(reportHeader), 0o644))

	src, err := LocateReport(path)
	require.NoError(t, err)
	assert.Equal(t, "Report.XML", src.Name)
	assert.Equal(t, dir, src.Root)
	assert.Equal(t, path, src.ReportPath)
	assert.Empty(t, src.ArchivePath)

	rc, arc, err := src.Open()
	require.NoError(t, err)
	assert.Nil(t, arc)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, reportHeader, string(data))
}

func TestLocateReport_RejectsOtherXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "other.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<project id="1"><nothing/></project>`), 0o644))
	_, err := LocateReport(path)
	assert.ErrorIs(t, err, ErrNoReport)

	far := filepath.Join(dir, "late.xml")
	body := "<project>" + strings.Repeat(" ", 2000) + reportHeader
	require.NoError(t, os.WriteFile(far, []byte(body), 0o644))
	assert.False(t, IsSupported(far), "markers past the header window do not count")
}

func TestLocateReport_Container(t *testing.T) {
	for _, manifest := range []string{"report.xml", "Report.xml"} {
		path := writeUFDR(t, t.TempDir(), "phone.ufdr", manifest)
		src, err := LocateReport(path)
		require.NoError(t, err, manifest)
		assert.Equal(t, "phone.ufdr", src.Name)
		assert.Equal(t, path, src.ArchivePath)
		assert.Positive(t, src.Size)

		rc, arc, err := src.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, reportHeader, string(data))
		require.NoError(t, rc.Close())
		require.NoError(t, arc.Close())
	}

	empty := writeUFDR(t, t.TempDir(), "empty.ufdr", "")
	assert.False(t, IsSupported(empty))
}

func TestLocateReport_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "files"), 0o755))
	_, err := LocateReport(dir)
	assert.ErrorIs(t, err, ErrNoReport)

	writeUFDR(t, dir, "b.ufdr", "report.xml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte(reportHeader), 0o644))

	src, err := LocateReport(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), src.Name)
	assert.Equal(t, dir, src.Root)
	assert.Equal(t, filepath.Join(dir, "a.xml"), src.ReportPath, "entries are checked in name order")
}
