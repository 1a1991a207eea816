package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"TradeBraid/internal/model"
)

// SQLiteStore persists learning state to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so report reads don't block pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patterns (
			module     TEXT NOT NULL,
			key        TEXT NOT NULL,
			dims       TEXT NOT NULL,
			family     TEXT NOT NULL,
			n          INTEGER NOT NULL DEFAULT 0,
			sum_rr     REAL NOT NULL DEFAULT 0,
			sum_rr_sq  REAL NOT NULL DEFAULT 0,
			sum_hold   REAL NOT NULL DEFAULT 0,
			wins       INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (module, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_family ON patterns(module, family)`,

		`CREATE TABLE IF NOT EXISTS baselines (
			module     TEXT NOT NULL,
			segment    TEXT NOT NULL,
			n          INTEGER NOT NULL DEFAULT 0,
			sum_rr     REAL NOT NULL DEFAULT 0,
			sum_rr_sq  REAL NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (module, segment)
		)`,

		`CREATE TABLE IF NOT EXISTS lessons (
			module           TEXT NOT NULL,
			trigger_key      TEXT NOT NULL,
			id               TEXT NOT NULL,
			trigger_dims     TEXT NOT NULL,
			multiplier       REAL NOT NULL,
			edge             REAL NOT NULL,
			incremental_edge REAL NOT NULL,
			sample_n         INTEGER NOT NULL,
			mean_rr          REAL NOT NULL,
			family           TEXT NOT NULL,
			pattern_key      TEXT NOT NULL,
			status           TEXT NOT NULL,
			recent_edges     TEXT NOT NULL,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL,
			PRIMARY KEY (module, trigger_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_status ON lessons(module, status)`,

		`CREATE TABLE IF NOT EXISTS processed_trades (
			module       TEXT NOT NULL,
			trade_id     TEXT NOT NULL,
			processed_at INTEGER NOT NULL,
			PRIMARY KEY (module, trade_id)
		)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) RecordPatternObservation(module, key string, dims map[string]string, family string, rr float64, win bool, hold time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dimsJSON, err := json.Marshal(dims)
	if err != nil {
		return fmt.Errorf("marshal dims: %w", err)
	}
	winN := 0
	if win {
		winN = 1
	}

	_, err = s.db.Exec(`INSERT INTO patterns
		(module, key, dims, family, n, sum_rr, sum_rr_sq, sum_hold, wins, updated_at)
		VALUES (?,?,?,?,1,?,?,?,?,?)
		ON CONFLICT(module, key) DO UPDATE SET
			n          = n + 1,
			sum_rr     = sum_rr + excluded.sum_rr,
			sum_rr_sq  = sum_rr_sq + excluded.sum_rr_sq,
			sum_hold   = sum_hold + excluded.sum_hold,
			wins       = wins + excluded.wins,
			updated_at = excluded.updated_at`,
		module, key, string(dimsJSON), family,
		rr, rr*rr, hold.Seconds(), winN, time.Now().Unix(),
	)
	return err
}

func (s *SQLiteStore) GetPattern(module, key string) (*model.PatternRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT dims, family, n, sum_rr, sum_rr_sq, sum_hold, wins, updated_at
		FROM patterns WHERE module = ? AND key = ?`, module, key)
	return scanPattern(row, module, key)
}

func (s *SQLiteStore) ListPatterns(module string) ([]model.PatternRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT key, dims, family, n, sum_rr, sum_rr_sq, sum_hold, wins, updated_at
		FROM patterns WHERE module = ? ORDER BY key`, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PatternRecord
	for rows.Next() {
		var p model.PatternRecord
		var dimsJSON string
		var updated int64
		if err := rows.Scan(&p.Key, &dimsJSON, &p.Family,
			&p.Stats.N, &p.Stats.SumRR, &p.Stats.SumRRSq, &p.Stats.SumHold, &p.Stats.Wins,
			&updated); err != nil {
			return nil, err
		}
		p.Module = module
		p.UpdatedAt = time.Unix(updated, 0)
		if err := json.Unmarshal([]byte(dimsJSON), &p.Dims); err != nil {
			return nil, fmt.Errorf("unmarshal dims for %s: %w", p.Key, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecordBaselineObservation(module, segment string, rr float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO baselines
		(module, segment, n, sum_rr, sum_rr_sq, updated_at)
		VALUES (?,?,1,?,?,?)
		ON CONFLICT(module, segment) DO UPDATE SET
			n          = n + 1,
			sum_rr     = sum_rr + excluded.sum_rr,
			sum_rr_sq  = sum_rr_sq + excluded.sum_rr_sq,
			updated_at = excluded.updated_at`,
		module, segment, rr, rr*rr, time.Now().Unix(),
	)
	return err
}

func (s *SQLiteStore) GetBaseline(module, segment string) (*model.BaselineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &model.BaselineRecord{Module: module, Segment: segment}
	var updated int64
	err := s.db.QueryRow(`SELECT n, sum_rr, sum_rr_sq, updated_at
		FROM baselines WHERE module = ? AND segment = ?`, module, segment).
		Scan(&b.Stats.N, &b.Stats.SumRR, &b.Stats.SumRRSq, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Unix(updated, 0)
	return b, nil
}

func (s *SQLiteStore) UpsertLesson(l *model.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	triggerJSON, err := json.Marshal(l.Trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	edgesJSON, err := json.Marshal(l.RecentEdges)
	if err != nil {
		return fmt.Errorf("marshal recent edges: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO lessons
		(module, trigger_key, id, trigger_dims, multiplier, edge, incremental_edge,
		 sample_n, mean_rr, family, pattern_key, status, recent_edges, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(module, trigger_key) DO UPDATE SET
			trigger_dims     = excluded.trigger_dims,
			multiplier       = excluded.multiplier,
			edge             = excluded.edge,
			incremental_edge = excluded.incremental_edge,
			sample_n         = excluded.sample_n,
			mean_rr          = excluded.mean_rr,
			family           = excluded.family,
			pattern_key      = excluded.pattern_key,
			status           = excluded.status,
			recent_edges     = excluded.recent_edges,
			updated_at       = excluded.updated_at`,
		l.Module, l.TriggerKey, l.ID, string(triggerJSON),
		l.Multiplier, l.Edge, l.IncrementalEdge,
		l.SampleN, l.MeanRR, l.Family, l.PatternKey, string(l.Status), string(edgesJSON),
		l.CreatedAt.Unix(), l.UpdatedAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) GetLesson(module, triggerKey string) (*model.Lesson, error) {
	lessons, err := s.queryLessons(`SELECT module, trigger_key, id, trigger_dims, multiplier, edge,
		incremental_edge, sample_n, mean_rr, family, pattern_key, status, recent_edges, created_at, updated_at
		FROM lessons WHERE module = ? AND trigger_key = ?`, module, triggerKey)
	if err != nil || len(lessons) == 0 {
		return nil, err
	}
	return &lessons[0], nil
}

func (s *SQLiteStore) ListLessons(module string) ([]model.Lesson, error) {
	return s.queryLessons(`SELECT module, trigger_key, id, trigger_dims, multiplier, edge,
		incremental_edge, sample_n, mean_rr, family, pattern_key, status, recent_edges, created_at, updated_at
		FROM lessons WHERE module = ? ORDER BY trigger_key`, module)
}

func (s *SQLiteStore) ListActiveLessons(module string) ([]model.Lesson, error) {
	return s.queryLessons(`SELECT module, trigger_key, id, trigger_dims, multiplier, edge,
		incremental_edge, sample_n, mean_rr, family, pattern_key, status, recent_edges, created_at, updated_at
		FROM lessons WHERE module = ? AND status = ? ORDER BY trigger_key`, module, string(model.StatusActive))
}

func (s *SQLiteStore) queryLessons(query string, args ...any) ([]model.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lesson
	for rows.Next() {
		var l model.Lesson
		var triggerJSON, edgesJSON, status string
		var created, updated int64
		if err := rows.Scan(&l.Module, &l.TriggerKey, &l.ID, &triggerJSON,
			&l.Multiplier, &l.Edge, &l.IncrementalEdge,
			&l.SampleN, &l.MeanRR, &l.Family, &l.PatternKey, &status, &edgesJSON,
			&created, &updated); err != nil {
			return nil, err
		}
		l.Status = model.LessonStatus(status)
		l.CreatedAt = time.Unix(created, 0)
		l.UpdatedAt = time.Unix(updated, 0)
		if err := json.Unmarshal([]byte(triggerJSON), &l.Trigger); err != nil {
			return nil, fmt.Errorf("unmarshal trigger for %s: %w", l.TriggerKey, err)
		}
		if err := json.Unmarshal([]byte(edgesJSON), &l.RecentEdges); err != nil {
			return nil, fmt.Errorf("unmarshal recent edges for %s: %w", l.TriggerKey, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PurgeDeprecated(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM lessons WHERE status = ? AND updated_at < ?`,
		string(model.StatusDeprecated), olderThan.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) TryMarkProcessed(module, tradeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT OR IGNORE INTO processed_trades (module, trade_id, processed_at)
		VALUES (?,?,?)`, module, tradeID, time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}

func scanPattern(row *sql.Row, module, key string) (*model.PatternRecord, error) {
	p := &model.PatternRecord{Module: module, Key: key}
	var dimsJSON string
	var updated int64
	err := row.Scan(&dimsJSON, &p.Family,
		&p.Stats.N, &p.Stats.SumRR, &p.Stats.SumRRSq, &p.Stats.SumHold, &p.Stats.Wins,
		&updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Unix(updated, 0)
	if err := json.Unmarshal([]byte(dimsJSON), &p.Dims); err != nil {
		return nil, fmt.Errorf("unmarshal dims for %s: %w", key, err)
	}
	return p, nil
}
