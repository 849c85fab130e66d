package graph

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const itemsSchema = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY,
	parent_id INTEGER,
	path TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	kind INTEGER NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0,
	has_children INTEGER NOT NULL DEFAULT 0,
	size INTEGER,
	category TEXT,
	media_type TEXT,
	content_kind TEXT,
	content_path TEXT,
	archive_id TEXT,
	id_in_source TEXT,
	created INTEGER,
	modified INTEGER,
	accessed INTEGER,
	metadata JSON
);
CREATE TABLE IF NOT EXISTS run_stats (
	discovered_count INTEGER NOT NULL,
	discovered_volume INTEGER NOT NULL
);
`

// SQLiteWriter persists emitted items into a SQLite database. Inserts are
// batched into transactions; counters are written once on Close.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	mu        sync.Mutex

	discoveredCount  int64
	discoveredVolume int64
	blindReport      bool
	log              *slog.Logger
}

// NewSQLiteWriter creates the database at dbPath and initializes the schema.
func NewSQLiteWriter(dbPath string, blindReport bool, log *slog.Logger) (*SQLiteWriter, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(itemsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{
		db:          db,
		batchSize:   10000,
		blindReport: blindReport,
		log:         log,
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT INTO items (id, parent_id, path, name, kind, deleted, has_children, size,
			category, media_type, content_kind, content_path, archive_id, id_in_source,
			created, modified, accessed, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
	}
	return w.tx.Commit()
}

// Submit writes one item inside the current batch transaction.
func (w *SQLiteWriter) Submit(ctx context.Context, it *Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var parentID *int
	if !it.IsRoot {
		p := it.ParentID
		parentID = &p
	}
	kind := 0
	if it.IsDir {
		kind = 1
	}
	var contentKind, contentPath, archiveID *string
	if it.Content != nil {
		k := it.Content.Kind.String()
		contentKind, contentPath, archiveID = &k, &it.Content.Path, &it.Content.ArchiveID
	}

	_, err := w.stmt.ExecContext(ctx,
		it.ID,
		parentID,
		it.Path,
		it.Name,
		kind,
		it.IsDeleted,
		it.HasChildren,
		it.Length,
		it.Category,
		it.MediaType,
		contentKind,
		contentPath,
		archiveID,
		it.IDInSource,
		unixNanos(it.Created),
		unixNanos(it.Modified),
		unixNanos(it.Accessed),
		string(MarshalMetadata(it.Metadata)),
	)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", it.Path, err)
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		w.log.Debug("sqlite batch committed", "items", w.count)
		w.count = 0
	}
	return nil
}

func (w *SQLiteWriter) IncDiscoveredCount(n int) {
	w.mu.Lock()
	w.discoveredCount += int64(n)
	w.mu.Unlock()
}

func (w *SQLiteWriter) IncDiscoveredVolume(bytes int64) {
	w.mu.Lock()
	w.discoveredVolume += bytes
	w.mu.Unlock()
}

func (w *SQLiteWriter) ContainsBlindReportMode() bool {
	return w.blindReport
}

// Close commits the pending batch, records the run counters and closes the
// database.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.tx.Exec("INSERT INTO run_stats (discovered_count, discovered_volume) VALUES (?, ?)",
		w.discoveredCount, w.discoveredVolume); err != nil {
		_ = w.tx.Rollback()
		_ = w.db.Close()
		return fmt.Errorf("write run stats: %w", err)
	}
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id, name)`); err != nil {
		w.log.Warn("sqlite index creation failed", "err", err)
	}
	return w.db.Close()
}

// LoadItems reads every item back from a database written by SQLiteWriter,
// ordered by ID.
func LoadItems(dbPath string) ([]*Item, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query(`
		SELECT i.id, COALESCE(i.parent_id, -1), i.path, i.name, i.kind, i.deleted, i.has_children,
			i.size, i.category, i.media_type, i.content_kind, i.content_path, i.archive_id,
			i.id_in_source, i.created, i.modified, i.accessed, i.metadata,
			COALESCE(p.path, '')
		FROM items i LEFT JOIN items p ON p.id = i.parent_id
		ORDER BY i.id`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var items []*Item
	for rows.Next() {
		var (
			it                            Item
			kind                          int
			size                          sql.NullInt64
			contentKind, contentPath, aid sql.NullString
			created, modified, accessed   sql.NullInt64
			meta                          string
		)
		if err := rows.Scan(&it.ID, &it.ParentID, &it.Path, &it.Name, &kind, &it.IsDeleted,
			&it.HasChildren, &size, &it.Category, &it.MediaType, &contentKind, &contentPath, &aid,
			&it.IDInSource, &created, &modified, &accessed, &meta, &it.ParentPath); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.IsDir = kind == 1
		it.IsRoot = it.ParentID < 0
		if size.Valid {
			it.SetLength(size.Int64)
		}
		if contentKind.Valid {
			it.Content = &ContentRef{
				Kind:      parseContentKind(contentKind.String),
				Path:      contentPath.String,
				ArchiveID: aid.String,
			}
		}
		it.Created = fromUnixNanos(created)
		it.Modified = fromUnixNanos(modified)
		it.Accessed = fromUnixNanos(accessed)
		if it.Metadata, err = UnmarshalMetadata([]byte(meta)); err != nil {
			return nil, fmt.Errorf("item %s: %w", it.Path, err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func parseContentKind(s string) ContentKind {
	for _, k := range []ContentKind{ContentFile, ContentArchive, ContentPreview, ContentMetadata} {
		if k.String() == s {
			return k
		}
	}
	return 0
}

func unixNanos(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UnixNano()
	return &n
}

func fromUnixNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
