package store

import (
	"context"
	"database/sql"
	_ "embed"
	"iter"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/rdf"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists quads in SQLite. Terms are stored in N-Triples form,
// so every lookup position maps onto an indexed equality predicate.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.SugaredLogger

	mu        sync.RWMutex
	listeners []Listener
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteLogger sets the logger for conditions the store recovers from,
// such as statistics that could not be read.
func WithSQLiteLogger(log *zap.SugaredLogger) SQLiteOption {
	return func(s *SQLiteStore) {
		if log != nil {
			s.log = log
		}
	}
}

// OpenSQLite creates or opens a SQLite database at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to sqlite database")
	}

	// SQLite only supports one writer at a time; one connection also keeps
	// ":memory:" databases alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	s := &SQLiteStore{db: db, log: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "execute %q", pragma)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddListener registers l for assert/retract notifications.
func (s *SQLiteStore) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *SQLiteStore) snapshotListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listeners
}

func encodeGraph(g rdf.Node) string {
	if g.IsZero() || g.IsDefaultGraph() {
		return ""
	}
	return g.String()
}

func decodeGraph(g string) (rdf.Node, error) {
	if g == "" {
		return rdf.DefaultGraph, nil
	}
	return rdf.ParseTerm(g)
}

// Assert inserts a quad.
func (s *SQLiteStore) Assert(q rdf.Quad) error {
	if !validQuad(q) {
		return errors.Newf("invalid quad: %s", q)
	}
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO quads (g, s, p, o) VALUES (?, ?, ?, ?)",
		encodeGraph(q.Graph), q.Subject.String(), q.Predicate.String(), q.Object.String(),
	)
	if err != nil {
		return errors.Wrapf(err, "assert %s", q)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if q.Graph.IsZero() {
			q.Graph = rdf.DefaultGraph
		}
		for _, l := range s.snapshotListeners() {
			l.OnAssert(q)
		}
	}
	return nil
}

// BulkAdd inserts quads in a single transaction and returns how many were new.
func (s *SQLiteStore) BulkAdd(ctx context.Context, quads []rdf.Quad) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin bulk insert")
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO quads (g, s, p, o) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "prepare bulk insert")
	}
	defer stmt.Close()

	var added []rdf.Quad
	for _, q := range quads {
		if !validQuad(q) {
			continue
		}
		res, err := stmt.ExecContext(ctx, encodeGraph(q.Graph), q.Subject.String(), q.Predicate.String(), q.Object.String())
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "insert %s", q)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			if q.Graph.IsZero() {
				q.Graph = rdf.DefaultGraph
			}
			added = append(added, q)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit bulk insert")
	}

	listeners := s.snapshotListeners()
	for _, q := range added {
		for _, l := range listeners {
			l.OnAssert(q)
		}
	}
	return len(added), nil
}

// Retract removes a quad.
func (s *SQLiteStore) Retract(q rdf.Quad) error {
	res, err := s.db.Exec(
		"DELETE FROM quads WHERE g = ? AND s = ? AND p = ? AND o = ?",
		encodeGraph(q.Graph), q.Subject.String(), q.Predicate.String(), q.Object.String(),
	)
	if err != nil {
		return errors.Wrapf(err, "retract %s", q)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if q.Graph.IsZero() {
			q.Graph = rdf.DefaultGraph
		}
		for _, l := range s.snapshotListeners() {
			l.OnRetract(q)
		}
	}
	return nil
}

// Find implements QuadStore. Rows are read and the cursor closed before the
// first quad is yielded: the store holds a single connection, and consumers
// such as nested-loop joins issue further lookups while iterating.
func (s *SQLiteStore) Find(graph, subject, predicate, object rdf.Node) iter.Seq2[rdf.Quad, error] {
	return func(yield func(rdf.Quad, error) bool) {
		var where []string
		var args []any
		if !graph.IsZero() {
			where = append(where, "g = ?")
			args = append(args, encodeGraph(graph))
		}
		for _, pos := range []struct {
			column string
			node   rdf.Node
		}{{"s", subject}, {"p", predicate}, {"o", object}} {
			if !pos.node.IsZero() {
				where = append(where, pos.column+" = ?")
				args = append(args, pos.node.String())
			}
		}

		query := "SELECT g, s, p, o FROM quads"
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}

		quads, err := s.queryQuads(query, args...)
		if err != nil {
			yield(rdf.Quad{}, err)
			return
		}
		for _, q := range quads {
			if !yield(q, nil) {
				return
			}
		}
	}
}

func (s *SQLiteStore) queryQuads(query string, args ...any) ([]rdf.Quad, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query quads")
	}
	defer rows.Close()

	var quads []rdf.Quad
	for rows.Next() {
		var g, sub, pred, obj string
		if err := rows.Scan(&g, &sub, &pred, &obj); err != nil {
			return nil, errors.Wrap(err, "scan quad")
		}
		q, err := decodeQuad(g, sub, pred, obj)
		if err != nil {
			return nil, err
		}
		quads = append(quads, q)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate quads")
	}
	return quads, nil
}

func decodeQuad(g, sub, pred, obj string) (rdf.Quad, error) {
	graph, err := decodeGraph(g)
	if err != nil {
		return rdf.Quad{}, errors.Wrapf(err, "malformed graph %q", g)
	}
	var terms [3]rdf.Node
	for i, raw := range []string{sub, pred, obj} {
		terms[i], err = rdf.ParseTerm(raw)
		if err != nil {
			return rdf.Quad{}, errors.Wrapf(err, "malformed term %q", raw)
		}
	}
	return rdf.Quad{Triple: rdf.NewTriple(terms[0], terms[1], terms[2]), Graph: graph}, nil
}

// GraphNames implements QuadStore.
func (s *SQLiteStore) GraphNames() iter.Seq2[rdf.Node, error] {
	return func(yield func(rdf.Node, error) bool) {
		names, err := s.graphNames()
		if err != nil {
			yield(rdf.Node{}, err)
			return
		}
		for _, g := range names {
			if !yield(g, nil) {
				return
			}
		}
	}
}

func (s *SQLiteStore) graphNames() ([]rdf.Node, error) {
	rows, err := s.db.Query("SELECT DISTINCT g FROM quads WHERE g <> '' ORDER BY g")
	if err != nil {
		return nil, errors.Wrap(err, "list graphs")
	}
	defer rows.Close()

	var names []rdf.Node
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, errors.Wrap(err, "scan graph")
		}
		node, err := rdf.ParseTerm(g)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed graph %q", g)
		}
		names = append(names, node)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate graphs")
	}
	return names, nil
}

// Count returns the number of stored quads.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM quads").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count quads")
	}
	return n, nil
}

// Stats implements StatsProvider. A failed read is logged and yields empty
// statistics, which the planner treats as "no information".
func (s *SQLiteStore) Stats() IndexStats {
	stats, err := s.ReadStats(context.Background())
	if err != nil {
		s.log.Debugw("index statistics unavailable, planning without them",
			logging.FieldBackend, "sqlite", logging.FieldError, err)
		return emptyStats()
	}
	return stats
}

func emptyStats() IndexStats {
	return IndexStats{
		PredicateCounts: make(map[string]int),
		SubjectCounts:   make(map[string]int),
		ObjectCounts:    make(map[string]int),
	}
}

// ReadStats computes index statistics, reporting any database error.
func (s *SQLiteStore) ReadStats(ctx context.Context) (IndexStats, error) {
	stats := emptyStats()
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT s), COUNT(DISTINCT p), COUNT(DISTINCT o), COUNT(DISTINCT NULLIF(g, '')) FROM quads",
	).Scan(&stats.TotalQuads, &stats.UniqueSubjects, &stats.UniquePredicates, &stats.UniqueObjects, &stats.Graphs)
	if err != nil {
		return IndexStats{}, errors.Wrap(err, "read quad totals")
	}

	for _, c := range []struct {
		column string
		counts map[string]int
	}{
		{"s", stats.SubjectCounts},
		{"p", stats.PredicateCounts},
		{"o", stats.ObjectCounts},
	} {
		if err := s.readCounts(ctx, c.column, c.counts); err != nil {
			return IndexStats{}, err
		}
	}
	return stats, nil
}

func (s *SQLiteStore) readCounts(ctx context.Context, column string, counts map[string]int) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM quads GROUP BY "+column)
	if err != nil {
		return errors.Wrapf(err, "count by %s", column)
	}
	defer rows.Close()
	for rows.Next() {
		var term string
		var n int
		if err := rows.Scan(&term, &n); err != nil {
			return errors.Wrapf(err, "scan %s counts", column)
		}
		counts[term] = n
	}
	return errors.Wrapf(rows.Err(), "iterate %s counts", column)
}
