package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agentic-research/evidencegraph/internal/content"
)

// ErrNoReport is returned when a path holds no supported report.
var ErrNoReport = errors.New("no supported report found")

// reportMarkers must all appear near the top of a plain report file.
var reportMarkers = []string{"project id", "extractionType", "sourceExtractions"}

const headerChars = 1024

// Source describes where a report and its extracted content live.
type Source struct {
	// Name is the evidence name, the base name of the path given by the user.
	Name string
	// Root is the directory that content paths are relative to when there is
	// no archive.
	Root string
	// ReportPath is the plain report file. Empty when the report is inside
	// the archive.
	ReportPath string
	// ArchivePath is the content container, if any.
	ArchivePath string
	// Size is the container size on disk.
	Size int64
}

// LocateReport finds the report for path: a report file, a container, or a
// directory holding either.
func LocateReport(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(filepath.Clean(path))
	if !info.IsDir() {
		src, err := checkReport(path)
		if err != nil {
			return nil, err
		}
		if src == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoReport, path)
		}
		src.Name = name
		return src, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src, err := checkReport(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, err
		}
		if src != nil {
			src.Name = name
			src.Root = path
			return src, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoReport, path)
}

// IsSupported reports whether LocateReport would find a report at path.
func IsSupported(path string) bool {
	_, err := LocateReport(path)
	return err == nil
}

// checkReport checks a single file. It returns nil when the file is not a report.
func checkReport(path string) (*Source, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xml"):
		ok, err := hasReportHeader(path)
		if err != nil || !ok {
			return nil, err
		}
		return &Source{Root: filepath.Dir(path), ReportPath: path}, nil

	case strings.HasSuffix(lower, ".ufdr"):
		arc := content.NewArchive(path)
		defer func() { _ = arc.Close() }()
		rc, err := arc.OpenManifest()
		if err != nil {
			if errors.Is(err, content.ErrNoManifest) || errors.Is(err, content.ErrArchiveOpen) {
				return nil, nil
			}
			return nil, err
		}
		_ = rc.Close()
		size, err := arc.Size()
		if err != nil {
			return nil, err
		}
		return &Source{Root: filepath.Dir(path), ArchivePath: path, Size: size}, nil
	}
	return nil, nil
}

func hasReportHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	var sb strings.Builder
	for n := 0; n < headerChars; n++ {
		r, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, err
		}
		if r == utf8.RuneError {
			continue
		}
		sb.WriteRune(r)
	}
	header := sb.String()
	for _, m := range reportMarkers {
		if !strings.Contains(header, m) {
			return false, nil
		}
	}
	return true, nil
}

// Open returns the report stream together with the archive holding the
// content, if any. The caller closes both.
func (s *Source) Open() (io.ReadCloser, *content.Archive, error) {
	if s.ArchivePath == "" {
		f, err := os.Open(s.ReportPath)
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	}
	arc := content.NewArchive(s.ArchivePath)
	rc, err := arc.OpenManifest()
	if err != nil {
		_ = arc.Close()
		return nil, nil, err
	}
	return rc, arc, nil
}
