package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

// MaxSearchResults caps Search.
const MaxSearchResults = 12

var (
	// ErrNotFound is returned for unknown counties and states.
	ErrNotFound = errors.New("not found")
	// ErrSameState is returned when a state is compared with itself.
	ErrSameState = errors.New("states must differ")
)

const schema = `
CREATE TABLE IF NOT EXISTS counties (
	fips       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL,
	population INTEGER NOT NULL DEFAULT 0,
	urbanicity TEXT,
	score      REAL NOT NULL DEFAULT 0,
	ord        INTEGER NOT NULL,
	doc        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_counties_state ON counties(state);
CREATE TABLE IF NOT EXISTS states (
	state TEXT PRIMARY KEY,
	doc   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the SQLite-backed civic dataset.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the dataset database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// One writer; readers share the connection pool.
	db.SetMaxOpenConns(4)

	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Import replaces the dataset with p after deriving any missing fields.
func (s *Store) Import(ctx context.Context, p *Payload) error {
	defer metrics.Timer(metrics.DatasetImport)()
	Derive(p)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM counties", "DELETE FROM states", "DELETE FROM meta"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear dataset: %w", err)
		}
	}

	insCounty, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO counties (fips, name, state, population, urbanicity, score, ord, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insCounty.Close()
	for i := range p.Counties {
		c := &p.Counties[i]
		doc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode county %s: %w", c.ID, err)
		}
		if _, err := insCounty.ExecContext(ctx, c.ID, c.Name, strings.ToUpper(c.ParentRegion),
			c.Population, string(c.Urbanicity), c.Score, i, string(doc)); err != nil {
			return fmt.Errorf("insert county %s: %w", c.ID, err)
		}
	}

	insState, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO states (state, doc) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insState.Close()
	for _, st := range p.States {
		st.State = strings.ToUpper(st.State)
		doc, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode state %s: %w", st.State, err)
		}
		if _, err := insState.ExecContext(ctx, st.State, string(doc)); err != nil {
			return fmt.Errorf("insert state %s: %w", st.State, err)
		}
	}

	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('metadata', ?)`, string(meta)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("dataset imported",
		zap.Int("counties", len(p.Counties)),
		zap.Int("states", len(p.States)),
		zap.String("urbanicity_source", p.Metadata.UrbanicitySource))
	return nil
}

// Metadata returns the metadata of the last import.
func (s *Store) Metadata(ctx context.Context) (Metadata, error) {
	var m Metadata
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'metadata'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	return m, json.Unmarshal([]byte(raw), &m)
}

// Search matches q against county name, state code and FIPS, in import
// order. A blank query returns an empty, non-nil slice.
func (s *Store) Search(ctx context.Context, q string) ([]model.EntitySummary, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	out := []model.EntitySummary{}
	if q == "" {
		return out, nil
	}
	pattern := "%" + escapeLike(q) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT fips, name, state, population, urbanicity
		FROM counties
		WHERE lower(name) LIKE ?1 ESCAPE '\' OR lower(state) LIKE ?1 ESCAPE '\' OR fips LIKE ?1 ESCAPE '\'
		ORDER BY ord
		LIMIT ?2`, pattern, MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var hit model.EntitySummary
		var name, state string
		var urb sql.NullString
		if err := rows.Scan(&hit.ID, &name, &state, &hit.Population, &urb); err != nil {
			return nil, err
		}
		hit.Display = hit.ID
		if name != "" {
			hit.Display = name + ", " + state
		}
		hit.Urbanicity = model.ParseUrbanicity(urb.String)
		out = append(out, hit)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// County returns the full county record.
func (s *Store) County(ctx context.Context, fips string) (*model.Entity, error) {
	id := model.NormalizeID(fips)
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM counties WHERE fips = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("county %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var e model.Entity
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		return nil, fmt.Errorf("decode county %s: %w", id, err)
	}
	e.Kind = model.KindCounty
	return &e, nil
}

// State returns the summary for a state code.
func (s *Store) State(ctx context.Context, code string) (*model.StateSummary, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM states WHERE state = ?`, code).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("state %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var sum model.StateSummary
	if err := json.Unmarshal([]byte(doc), &sum); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", code, err)
	}
	return &sum, nil
}

// States lists the state codes, sorted.
func (s *Store) States(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state FROM states ORDER BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CompareStates returns a minus b for two different states.
func (s *Store) CompareStates(ctx context.Context, a, b string) (*model.StateGaps, error) {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == b {
		return nil, ErrSameState
	}
	sa, err := s.State(ctx, a)
	if err != nil {
		return nil, err
	}
	sb, err := s.State(ctx, b)
	if err != nil {
		return nil, err
	}
	gaps := model.Gaps(*sa, *sb)
	return &gaps, nil
}
