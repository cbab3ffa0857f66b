package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
	"gopkg.in/yaml.v3"

	"github.com/pcs-sim/pcs-sim/sim"
	"github.com/pcs-sim/pcs-sim/sim/sweep"
	"github.com/pcs-sim/pcs-sim/sim/trace"
)

const (
	resultsDBName   = "results.sqlite3"
	summaryFileName = "summary.yaml"
)

// RunSummary is one entry of summary.yaml.
type RunSummary struct {
	RunID   string              `yaml:"run_id"`
	Config  sim.RunConfig       `yaml:"config"`
	Metrics *sim.Metrics        `yaml:"metrics,omitempty"`
	Trace   *trace.TraceSummary `yaml:"trace,omitempty"`
	Error   string              `yaml:"error,omitempty"`
}

// Recorder persists run results under one output directory. Every run becomes a
// row of the runs table in results.sqlite3, with its per-processor utilization
// in the processors table. Traced runs also get their decision summary in the
// decisions and decision_targets tables. summary.yaml lists every run recorded
// in the directory, including those of earlier Recorders. Close writes the
// summary; it is also registered with atexit so a fatal exit still leaves the
// directory consistent.
//
// Thread-safety: safe for concurrent Record calls.
type Recorder struct {
	mu sync.Mutex

	dir     string
	db      *sql.DB
	summary []RunSummary
	closed  bool
}

// NewRecorder creates dir if needed and opens (or creates) its results database.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	dbPath := filepath.Join(dir, resultsDBName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	r := &Recorder{dir: dir, db: db}
	if r.summary, err = readSummary(filepath.Join(dir, summaryFileName)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := r.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logrus.Debugf("Recording results in %s", dbPath)

	atexit.Register(func() {
		if err := r.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing recorder for %s: %v\n", dir, err)
		}
	})
	return r, nil
}

// readSummary loads the entries of an existing summary.yaml so later runs are
// appended to it. A missing file is an empty summary.
func readSummary(path string) ([]RunSummary, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var entries []RunSummary
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return entries, nil
}

func (r *Recorder) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs
		(
			run_id               VARCHAR(40) PRIMARY KEY,
			mode                 VARCHAR(20) NOT NULL,
			seed                 INTEGER     NOT NULL,
			ta                   FLOAT       NOT NULL,
			complete_calls       INTEGER     NOT NULL,
			p                    INTEGER     NOT NULL,
			np                   INTEGER     NOT NULL,
			nprc                 INTEGER     NOT NULL,
			completed            INTEGER,
			blocked              INTEGER,
			arrivals             INTEGER,
			drained              INTEGER,
			blocking_probability FLOAT,
			mean_wait            FLOAT,
			p95_wait             FLOAT,
			mean_utilization     FLOAT,
			utilization_variance FLOAT,
			final_variance       FLOAT,
			events               INTEGER,
			target_time          FLOAT,
			sim_end_time         FLOAT,
			error                TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS processors
		(
			run_id      VARCHAR(40) NOT NULL,
			processor   INTEGER     NOT NULL,
			utilization FLOAT       NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS processors_run_id_index ON processors (run_id);`,
		`CREATE TABLE IF NOT EXISTS decisions
		(
			run_id         VARCHAR(40) PRIMARY KEY,
			total          INTEGER     NOT NULL,
			assigned       INTEGER     NOT NULL,
			rejected       INTEGER     NOT NULL,
			mean_probes    FLOAT       NOT NULL,
			max_probes     INTEGER     NOT NULL,
			unique_targets INTEGER     NOT NULL,
			releases       INTEGER     NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decision_targets
		(
			run_id    VARCHAR(40) NOT NULL,
			processor INTEGER     NOT NULL,
			assigned  INTEGER     NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS decision_targets_run_id_index ON decision_targets (run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating results schema: %w", err)
		}
	}
	return nil
}

// Record stores one sweep result. Failed runs are stored with their error and
// no metrics.
func (r *Recorder) Record(res sweep.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder for %s is closed", r.dir)
	}

	entry := RunSummary{RunID: res.RunID, Config: res.Config, Metrics: res.Metrics, Trace: res.Trace}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	r.summary = append(r.summary, entry)

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := insertRun(tx, entry); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("recording run %s: %w", res.RunID, err)
	}
	return tx.Commit()
}

func insertRun(tx *sql.Tx, e RunSummary) error {
	cfg := e.Config
	var completed, blocked, arrivals, drained, events sql.NullInt64
	var pBlock, meanWait, p95Wait, meanUtil, utilVar, finalVar, targetTime, simEnd sql.NullFloat64
	var errText sql.NullString
	if m := e.Metrics; m != nil {
		completed = sql.NullInt64{Int64: int64(m.Completed), Valid: true}
		blocked = sql.NullInt64{Int64: int64(m.Blocked), Valid: true}
		arrivals = sql.NullInt64{Int64: int64(m.Arrivals), Valid: true}
		drained = sql.NullInt64{Int64: int64(m.Drained), Valid: true}
		pBlock = sql.NullFloat64{Float64: m.BlockingProbability(), Valid: true}
		meanWait = sql.NullFloat64{Float64: m.MeanWait, Valid: true}
		p95Wait = sql.NullFloat64{Float64: m.P95Wait, Valid: true}
		meanUtil = sql.NullFloat64{Float64: m.MeanUtilization, Valid: true}
		utilVar = sql.NullFloat64{Float64: m.UtilizationVariance, Valid: true}
		finalVar = sql.NullFloat64{Float64: m.FinalVariance, Valid: true}
		targetTime = sql.NullFloat64{Float64: m.TargetTime, Valid: true}
		simEnd = sql.NullFloat64{Float64: m.SimEndTime, Valid: true}
		events = sql.NullInt64{Int64: m.Events, Valid: true}
	}
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}

	_, err := tx.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, string(cfg.Mode), cfg.Seed, cfg.TA, cfg.CompleteCalls, cfg.P, cfg.NP, cfg.NPRC,
		completed, blocked, arrivals, drained,
		pBlock, meanWait, p95Wait, meanUtil, utilVar, finalVar,
		events, targetTime, simEnd, errText)
	if err != nil {
		return err
	}
	if e.Metrics != nil {
		if err := insertProcessors(tx, e.RunID, e.Metrics.ProcessorUtilization); err != nil {
			return err
		}
	}
	if e.Trace != nil {
		return insertDecisions(tx, e.RunID, e.Trace)
	}
	return nil
}

func insertProcessors(tx *sql.Tx, runID string, utilization []float64) error {
	stmt, err := tx.Prepare(`INSERT INTO processors (run_id, processor, utilization) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for pid, u := range utilization {
		if _, err := stmt.Exec(runID, pid, u); err != nil {
			return err
		}
	}
	return nil
}

func insertDecisions(tx *sql.Tx, runID string, ts *trace.TraceSummary) error {
	_, err := tx.Exec(`INSERT INTO decisions VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, ts.TotalDecisions, ts.AssignedCount, ts.RejectedCount,
		ts.MeanProbes, ts.MaxProbes, ts.UniqueTargets, ts.ReleaseCount)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO decision_targets (run_id, processor, assigned) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for pid, n := range ts.TargetDistribution {
		if _, err := stmt.Exec(runID, pid, n); err != nil {
			return err
		}
	}
	return nil
}

// Close writes summary.yaml and closes the database. Calling it again is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	data, err := yaml.Marshal(r.summary)
	if err == nil {
		err = os.WriteFile(filepath.Join(r.dir, summaryFileName), data, 0o644)
	}
	if cerr := r.db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("closing results in %s: %w", r.dir, err)
	}
	return nil
}

// recorderSet opens one Recorder per output directory on demand.
type recorderSet struct {
	byDir map[string]*Recorder
	order []string
}

func newRecorderSet() *recorderSet {
	return &recorderSet{byDir: make(map[string]*Recorder)}
}

func (s *recorderSet) get(dir string) (*Recorder, error) {
	if r, ok := s.byDir[dir]; ok {
		return r, nil
	}
	r, err := NewRecorder(dir)
	if err != nil {
		return nil, err
	}
	s.byDir[dir] = r
	s.order = append(s.order, dir)
	return r, nil
}

// closeAll closes every recorder and returns the first error.
func (s *recorderSet) closeAll() error {
	var first error
	for _, dir := range s.order {
		if err := s.byDir[dir].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
