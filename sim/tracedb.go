package sim

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// traceBatchSize is how many coherence events TraceDB buffers before
// flushing them to disk in one transaction.
const traceBatchSize = 4096

// CoherenceEvent is one directory state transition recorded for later
// analysis: which line, which tile, what happened.
type CoherenceEvent struct {
	LineAddr uint64
	Rank     int
	Op       string
	State    string
}

// TraceDB batches coherence events into a sqlite database, flushing on a
// size threshold or on process exit, whichever comes first — the same
// batched-write-plus-atexit-registration shape the original trace writer
// uses so a run's trace is never silently lost on an unclean exit.
type TraceDB struct {
	mu      sync.Mutex
	db      *sql.DB
	pending []CoherenceEvent
}

// NewTraceDB opens (creating if absent) a sqlite database at path and
// registers a flush at process exit.
func NewTraceDB(path string) (*TraceDB, error) {
	if path == "" {
		path = fmt.Sprintf("graphite-trace-%s.db", xid.New().String())
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("tracedb: opening %s: %w", path, err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS coherence_events (
		line_addr INTEGER NOT NULL,
		rank      INTEGER NOT NULL,
		op        TEXT NOT NULL,
		state     TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracedb: creating schema: %w", err)
	}

	t := &TraceDB{db: db}
	atexit.Register(func() { t.Flush() })

	return t, nil
}

// Record buffers one event, flushing the batch once it reaches
// traceBatchSize.
func (t *TraceDB) Record(ev CoherenceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = append(t.pending, ev)

	if len(t.pending) >= traceBatchSize {
		t.flushLocked()
	}
}

// Flush commits any buffered events immediately, in one transaction.
func (t *TraceDB) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flushLocked()
}

func (t *TraceDB) flushLocked() {
	if len(t.pending) == 0 {
		return
	}

	tx, err := t.db.Begin()
	if err != nil {
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO coherence_events(line_addr, rank, op, state) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return
	}

	for _, ev := range t.pending {
		if _, err := stmt.Exec(ev.LineAddr, ev.Rank, ev.Op, ev.State); err != nil {
			stmt.Close()
			tx.Rollback()

			return
		}
	}

	stmt.Close()
	tx.Commit()

	t.pending = t.pending[:0]
}

// Close flushes and releases the underlying database handle.
func (t *TraceDB) Close() error {
	t.Flush()

	return t.db.Close()
}
