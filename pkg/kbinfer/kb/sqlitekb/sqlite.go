package sqlitekb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

// DefaultCacheSize is the identifier cache size used when none is given.
const DefaultCacheSize = 1024

// KB implements kb.KB on top of SQLite.
type KB struct {
	db    *sql.DB
	idtfs *lru.Cache[string, kb.Addr]
}

// Open opens (or creates) a SQLite knowledge base with WAL mode enabled.
// cacheSize bounds the identifier lookup cache; values <= 0 use DefaultCacheSize.
func Open(ctx context.Context, path string, cacheSize int) (*KB, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, kb.Addr](cacheSize)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, internalerr.ErrStoreUnavailable)
	}
	// a single connection keeps writes and reads of one run strictly ordered
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &KB{db: db, idtfs: cache}, nil
}

// Close closes the database connection
func (s *KB) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS elements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type INTEGER NOT NULL,
	source INTEGER,
	target INTEGER,
	idtf TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS elements_source ON elements(source);
CREATE INDEX IF NOT EXISTS elements_target ON elements(target);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateNode adds a node of type t.
func (s *KB) CreateNode(ctx context.Context, t kb.Type) (kb.Addr, error) {
	if !t.Valid() || !t.IsNode() {
		return 0, fmt.Errorf("create node %s: %w", t, internalerr.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO elements (type) VALUES (?)`, int64(t))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return kb.Addr(id), err
}

// CreateArc adds an arc of type t between two existing elements.
func (s *KB) CreateArc(ctx context.Context, t kb.Type, source, target kb.Addr) (kb.Addr, error) {
	if !t.Valid() || !t.IsArc() {
		return 0, fmt.Errorf("create arc %s: %w", t, internalerr.ErrInvalidInput)
	}
	for _, end := range []kb.Addr{source, target} {
		ok, err := s.exists(ctx, end)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("arc end %d: %w", end, internalerr.ErrNotFound)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO elements (type, source, target) VALUES (?, ?, ?)`,
		int64(t), int64(source), int64(target))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return kb.Addr(id), err
}

func (s *KB) exists(ctx context.Context, a kb.Addr) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM elements WHERE id = ?`, int64(a)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Erase removes an element and, transitively, every arc incident to it.
func (s *KB) Erase(ctx context.Context, a kb.Addr) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seen := map[int64]bool{int64(a): true}
	queue := []int64{int64(a)}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		rows, err := tx.QueryContext(ctx, `SELECT id FROM elements WHERE source = ? OR target = ?`, id, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var arc int64
			if err := rows.Scan(&arc); err != nil {
				rows.Close()
				return err
			}
			if !seen[arc] {
				seen[arc] = true
				queue = append(queue, arc)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM elements WHERE id = ? RETURNING idtf`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var dropped []string
	for id := range seen {
		var idtf sql.NullString
		err := stmt.QueryRowContext(ctx, id).Scan(&idtf)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return err
		}
		if idtf.Valid {
			dropped = append(dropped, idtf.String)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, idtf := range dropped {
		s.idtfs.Remove(idtf)
	}
	return nil
}

// Element loads a single element.
func (s *KB) Element(ctx context.Context, a kb.Addr) (kb.Element, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, source, target, idtf FROM elements WHERE id = ?`, int64(a))
	el, err := scanElement(row)
	if err == sql.ErrNoRows {
		return kb.Element{}, false, nil
	}
	if err != nil {
		return kb.Element{}, false, err
	}
	return el, true, nil
}

// Count returns the number of stored elements.
func (s *KB) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements`).Scan(&n)
	return n, err
}

// SetIdtf assigns a unique system identifier to an element.
func (s *KB) SetIdtf(ctx context.Context, a kb.Addr, idtf string) error {
	el, ok, err := s.Element(ctx, a)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("set idtf %q: %w", idtf, internalerr.ErrNotFound)
	}
	if other, taken, err := s.ResolveIdtf(ctx, idtf); err != nil {
		return err
	} else if taken && other != a {
		return fmt.Errorf("set idtf %q: %w", idtf, internalerr.ErrDuplicate)
	}

	var value interface{}
	if idtf != "" {
		value = idtf
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE elements SET idtf = ? WHERE id = ?`, value, int64(a)); err != nil {
		return err
	}
	if el.Idtf != "" {
		s.idtfs.Remove(el.Idtf)
	}
	if idtf != "" {
		s.idtfs.Add(idtf, a)
	}
	return nil
}

// ResolveIdtf finds the element carrying idtf, consulting the cache first.
func (s *KB) ResolveIdtf(ctx context.Context, idtf string) (kb.Addr, bool, error) {
	if a, ok := s.idtfs.Get(idtf); ok {
		return a, true, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM elements WHERE idtf = ?`, idtf).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	s.idtfs.Add(idtf, kb.Addr(id))
	return kb.Addr(id), true, nil
}

// Arcs returns arcs matching q ordered by creation.
func (s *KB) Arcs(ctx context.Context, q kb.ArcQuery) ([]kb.Element, error) {
	var (
		where = []string{"e.source IS NOT NULL"}
		args  []interface{}
		joins []string
	)
	if q.Source.IsValid() {
		where = append(where, "e.source = ?")
		args = append(args, int64(q.Source))
	}
	if q.Target.IsValid() {
		where = append(where, "e.target = ?")
		args = append(args, int64(q.Target))
	}
	if q.Type != 0 {
		where = append(where, "(e.type & ?) = ?")
		args = append(args, int64(q.Type), int64(q.Type))
	}
	if q.SourceType != 0 {
		joins = append(joins, "JOIN elements s ON s.id = e.source")
		where = append(where, "(s.type & ?) = ?")
		args = append(args, int64(q.SourceType), int64(q.SourceType))
	}
	if q.TargetType != 0 {
		joins = append(joins, "JOIN elements t ON t.id = e.target")
		where = append(where, "(t.type & ?) = ?")
		args = append(args, int64(q.TargetType), int64(q.TargetType))
	}

	query := fmt.Sprintf(`
SELECT e.id, e.type, e.source, e.target, e.idtf
FROM elements e
%s
WHERE %s
ORDER BY e.id;
`, strings.Join(joins, "\n"), strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kb.Element
	for rows.Next() {
		el, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanElement(row scanner) (kb.Element, error) {
	var (
		id, typ        int64
		source, target sql.NullInt64
		idtf           sql.NullString
	)
	if err := row.Scan(&id, &typ, &source, &target, &idtf); err != nil {
		return kb.Element{}, err
	}
	return kb.Element{
		Addr:   kb.Addr(id),
		Type:   kb.Type(typ),
		Source: kb.Addr(source.Int64),
		Target: kb.Addr(target.Int64),
		Idtf:   idtf.String,
	}, nil
}
