// Package export writes a one-shot SQLite snapshot of a virtual scan
// tree, for downstream tools that prefer SQL over the path API.
package export

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ChannyClaus/silx/spech5"
)

// Writer streams scan and node rows into a SQLite database with
// batched transactions and prepared statements.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmtScan  *sql.Stmt
	stmtNode  *sql.Stmt
	batchSize int
	count     int
	mu        sync.Mutex
}

// NewWriter creates the database and its schema.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Bulk-insert tuning; the snapshot is rebuilt from scratch on error.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		key TEXT PRIMARY KEY,
		number INTEGER NOT NULL,
		ord INTEGER NOT NULL,
		title TEXT,
		start_time TEXT,
		rows INTEGER NOT NULL,
		cols INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS nodes (
		path TEXT PRIMARY KEY,
		scan_key TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		dtype TEXT,
		shape TEXT,
		value TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_scan ON nodes(scan_key);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &Writer{
		db:        db,
		batchSize: 10000,
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtScan, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO scans (key, number, ord, title, start_time, rows, cols)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	w.stmtNode, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO nodes (path, scan_key, name, kind, dtype, shape, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *Writer) commitTx() error {
	if w.stmtScan != nil {
		_ = w.stmtScan.Close()
	}
	if w.stmtNode != nil {
		_ = w.stmtNode.Close()
	}
	return w.tx.Commit()
}

func (w *Writer) addScan(key string, number, ord int, title, start string, rows, cols int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.stmtScan.Exec(key, number, ord, title, start, rows, cols)
	if err != nil {
		return err
	}
	return w.bump()
}

func (w *Writer) addNode(path, scanKey, name, kind, dtype, shape string, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var val any
	if value != nil {
		val = string(value)
	}
	_, err := w.stmtNode.Exec(path, scanKey, name, kind, dtype, shape, val)
	if err != nil {
		return err
	}
	return w.bump()
}

// bump commits and reopens the transaction at batch boundaries.
// Must be called with w.mu held.
func (w *Writer) bump() error {
	w.count++
	if w.count < w.batchSize {
		return nil
	}
	if err := w.commitTx(); err != nil {
		return err
	}
	w.count = 0
	return w.beginTx()
}

// Close commits the pending batch and closes the database.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}

// Snapshot walks the whole virtual tree of f once and writes it to a
// new SQLite database at dbPath.
func Snapshot(dbPath string, f *spech5.File) error {
	w, err := NewWriter(dbPath)
	if err != nil {
		return err
	}

	if err := writeAll(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func writeAll(w *Writer, f *spech5.File) error {
	for _, s := range f.Spec().Scans {
		title, start := "", ""
		if ds, err := f.Dataset("/" + s.Key() + "/title"); err == nil {
			if v, err := ds.Read(); err == nil {
				title = v.(string)
			}
		}
		if ds, err := f.Dataset("/" + s.Key() + "/start_time"); err == nil {
			if v, err := ds.Read(); err == nil {
				start = v.(string)
			}
		}
		if err := w.addScan(s.Key(), s.Number, s.Order, title, start,
			len(s.Data), len(s.Columns)); err != nil {
			return fmt.Errorf("scan %s: %w", s.Key(), err)
		}
	}

	return f.VisitItems(func(path string, n spech5.Node) error {
		scanKey := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]

		ds, ok := n.(*spech5.Dataset)
		if !ok {
			return w.addNode(path, scanKey, n.Name(), "group", "", "", nil)
		}

		v, err := ds.Read()
		if err != nil {
			// Unreadable leaves (e.g. a motor with no recorded
			// position) are kept as structure without a value.
			return w.addNode(path, scanKey, n.Name(), "dataset",
				ds.Dtype().String(), shapeString(ds.Shape()), nil)
		}
		value, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		return w.addNode(path, scanKey, n.Name(), "dataset",
			ds.Dtype().String(), shapeString(ds.Shape()), value)
	})
}

func shapeString(shape []int) string {
	if len(shape) == 0 {
		return ""
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, "x")
}
