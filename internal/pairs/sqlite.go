package pairs

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pairs (
	position INTEGER NOT NULL,
	id       INTEGER PRIMARY KEY,
	label    TEXT NOT NULL,
	value    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pairs_position ON pairs(position);
`

// SQLStore keeps the pair list in a SQLite database. The position column
// preserves list order.
type SQLStore struct {
	db *sql.DB
}

func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, path, err)
	}
	// A single connection keeps the pure-Go driver from racing on one file.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrStorageUnavailable, err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Load(ctx context.Context) ([]Pair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, value FROM pairs ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	list := []Pair{}
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.ID, &p.Label, &p.Value); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStorageUnavailable, err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return list, nil
}

func (s *SQLStore) Save(ctx context.Context, list []Pair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pairs`); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrStorageUnavailable, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pairs (position, id, label, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrStorageUnavailable, err)
	}
	defer stmt.Close()

	for i, p := range list {
		if _, err := stmt.ExecContext(ctx, i, p.ID, p.Label, p.Value); err != nil {
			return fmt.Errorf("%w: insert %d: %v", ErrStorageUnavailable, p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
	}
	return nil
}
