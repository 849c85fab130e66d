package content

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ArchivePathPrefix marks content addressed inside the companion archive.
const ArchivePathPrefix = "ufdr:/"

// ManifestNames are the accepted names of the report inside a container.
var ManifestNames = []string{"report.xml", "Report.xml"}

var (
	ErrArchiveOpen = errors.New("open content archive")
	ErrNoManifest  = errors.New("archive has no report manifest")
	ErrClosed      = errors.New("archive is closed")
)

// Entry is one file stored in the archive.
type Entry struct {
	Name string
	Size int64
	file *zip.File
}

// Archive is a lazily opened, random-access view over a zip container.
// The underlying handle is opened on first use and kept until Close.
type Archive struct {
	path string
	id   string

	once    sync.Once
	openErr error
	rc      *zip.ReadCloser
	entries map[string]*zip.File
	closed  bool
}

// NewArchive prepares an archive at path without opening it.
func NewArchive(path string) *Archive {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Archive{
		path: path,
		id:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String(),
	}
}

// ID is a stable handle id derived from the archive location.
func (a *Archive) ID() string { return a.id }

// Path returns the archive location on disk.
func (a *Archive) Path() string { return a.path }

// Size returns the container size on disk.
func (a *Archive) Size() (int64, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (a *Archive) open() error {
	if a.closed {
		return fmt.Errorf("%w: %s", ErrClosed, a.path)
	}
	a.once.Do(func() {
		rc, err := zip.OpenReader(a.path)
		if err != nil {
			a.openErr = fmt.Errorf("%w %s: %v", ErrArchiveOpen, a.path, err)
			return
		}
		a.rc = rc
		a.entries = make(map[string]*zip.File, len(rc.File))
		for _, f := range rc.File {
			a.entries[f.Name] = f
		}
	})
	return a.openErr
}

// Lookup finds an entry by its exact, case-sensitive name.
func (a *Archive) Lookup(name string) (Entry, bool, error) {
	if err := a.open(); err != nil {
		return Entry{}, false, err
	}
	f, ok := a.entries[name]
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{Name: f.Name, Size: int64(f.UncompressedSize64), file: f}, true, nil
}

// Open streams an entry's decompressed bytes.
func (a *Archive) Open(e Entry) (io.ReadCloser, error) {
	if e.file == nil {
		return nil, fmt.Errorf("entry %q was not obtained from Lookup", e.Name)
	}
	if a.closed {
		return nil, fmt.Errorf("%w: %s", ErrClosed, a.path)
	}
	return e.file.Open()
}

// ReadEntry reads a whole entry into memory.
func (a *Archive) ReadEntry(e Entry) ([]byte, error) {
	r, err := a.Open(e)
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", e.Name, err)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", e.Name, err)
	}
	return data, nil
}

// OpenManifest opens the report stored inside the archive, accepting either
// casing of its name.
func (a *Archive) OpenManifest() (io.ReadCloser, error) {
	for _, name := range ManifestNames {
		e, ok, err := a.Lookup(name)
		if err != nil {
			return nil, err
		}
		if ok {
			return a.Open(e)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoManifest, a.path)
}

// Close releases the archive handle if it was opened. Lookups fail with
// ErrClosed afterwards.
func (a *Archive) Close() error {
	a.closed = true
	a.entries = nil
	if a.rc == nil {
		return nil
	}
	err := a.rc.Close()
	a.rc = nil
	return err
}
