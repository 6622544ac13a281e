// Package store persists JSON-serializable records in SQLite, keyed by the
// record's own identifier. The id column is generated from the stored JSON,
// so the document is the single source of truth.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record exists under the requested id.
var ErrNotFound = errors.New("record not found")

// Item is anything the store can persist. ItemID must be stable and appear
// in the item's JSON encoding under the "id" key.
type Item interface {
	ItemID() string
}

// PaginatedResults is one page of a List or Search call.
type PaginatedResults[T Item] struct {
	Items   []T `json:"items"`
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// SQLiteStore persists items of one type in one table. All access is
// serialized on an internal mutex; the zero page is the first page.
type SQLiteStore[T Item] struct {
	mu    sync.Mutex
	db    *sql.DB
	table string

	onChanged []func(T)
	onDeleted []func(string)
}

// Open opens (or creates) the database at path and ensures the table for
// this store exists. Use ":memory:" for an ephemeral store.
func Open[T Item](path, table string) (*SQLiteStore[T], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}

	s := &SQLiteStore[T]{db: db, table: table}
	if err := s.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	return s, nil
}

func (s *SQLiteStore[T]) createTable() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		item TEXT,
		id TEXT GENERATED ALWAYS AS (json_extract(item, '$.id')) VIRTUAL NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_id ON %[1]s(id);
	`, s.table)
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// OnChanged registers a callback invoked after every successful Set.
func (s *SQLiteStore[T]) OnChanged(fn func(T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChanged = append(s.onChanged, fn)
}

// OnDeleted registers a callback invoked after every successful Delete.
func (s *SQLiteStore[T]) OnDeleted(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDeleted = append(s.onDeleted, fn)
}

// Set inserts the item, replacing any record with the same id.
func (s *SQLiteStore[T]) Set(ctx context.Context, item T) error {
	encoded, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("store %s: encode %q: %w", s.table, item.ItemID(), err)
	}

	s.mu.Lock()
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (item) VALUES (?)`, s.table)
	_, err = s.db.ExecContext(ctx, query, string(encoded))
	changed := append(([]func(T))(nil), s.onChanged...)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("store %s: set %q: %w", s.table, item.ItemID(), err)
	}

	for _, fn := range changed {
		fn(item)
	}
	return nil
}

// Get loads the record stored under id.
func (s *SQLiteStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	s.mu.Lock()
	query := fmt.Sprintf(`SELECT item FROM %s WHERE id = ?`, s.table)
	row := s.db.QueryRowContext(ctx, query, id)
	var encoded string
	err := row.Scan(&encoded)
	s.mu.Unlock()

	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("store %s: get %q: %w", s.table, id, ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("store %s: get %q: %w", s.table, id, err)
	}

	var item T
	if err := json.Unmarshal([]byte(encoded), &item); err != nil {
		return zero, fmt.Errorf("store %s: decode %q: %w", s.table, id, err)
	}
	return item, nil
}

// Delete removes the record stored under id. Deleting a missing record is
// not an error.
func (s *SQLiteStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table)
	_, err := s.db.ExecContext(ctx, query, id)
	deleted := append(([]func(string))(nil), s.onDeleted...)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("store %s: delete %q: %w", s.table, id, err)
	}

	for _, fn := range deleted {
		fn(id)
	}
	return nil
}

// List returns one page of records ordered by id.
func (s *SQLiteStore[T]) List(ctx context.Context, page, perPage int) (*PaginatedResults[T], error) {
	query := fmt.Sprintf(`SELECT item FROM %s ORDER BY id LIMIT ? OFFSET ?`, s.table)
	count := fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)
	return s.paginate(ctx, page, perPage, query, count, nil)
}

// Search returns one page of records whose JSON contains the query text.
func (s *SQLiteStore[T]) Search(ctx context.Context, text string, page, perPage int) (*PaginatedResults[T], error) {
	query := fmt.Sprintf(`SELECT item FROM %s WHERE item LIKE ? ORDER BY id LIMIT ? OFFSET ?`, s.table)
	count := fmt.Sprintf(`SELECT count(*) FROM %s WHERE item LIKE ?`, s.table)
	like := "%" + text + "%"
	return s.paginate(ctx, page, perPage, query, count, []any{like})
}

func (s *SQLiteStore[T]) paginate(ctx context.Context, page, perPage int, query, count string, filter []any) (*PaginatedResults[T], error) {
	if page < 0 || perPage <= 0 {
		return nil, fmt.Errorf("store %s: invalid page %d / per_page %d", s.table, page, perPage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	args := append(append([]any(nil), filter...), perPage, page*perPage)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store %s: list: %w", s.table, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("store %s: list: %w", s.table, err)
		}
		var item T
		if err := json.Unmarshal([]byte(encoded), &item); err != nil {
			return nil, fmt.Errorf("store %s: decode: %w", s.table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store %s: list: %w", s.table, err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, count, filter...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store %s: count: %w", s.table, err)
	}

	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return &PaginatedResults[T]{
		Items:   items,
		Page:    page,
		Pages:   pages,
		PerPage: perPage,
		Total:   total,
	}, nil
}
