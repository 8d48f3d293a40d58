// Package tracing persists a record of every delivery, interrupt and
// termination a simulation produces, so a run can be inspected after the
// fact instead of only through live logging.
package tracing

import (
	"database/sql"
	"fmt"

	// Registers the sqlite3 driver under database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/desim/des"
)

// Record is one row of a persisted trace.
type Record struct {
	ID     string
	Time   float64
	Kind   string // "deliver", "interrupt", "register", "terminate"
	Owner  string
	Detail string
}

// Writer batches Records in memory and flushes them to a SQLite database on
// demand, or automatically at batchSize, or when the process exits through
// atexit.Exit (a plain os.Exit skips that flush).
type Writer struct {
	db        *sql.DB
	statement *sql.Stmt

	dbPath    string
	batchSize int
	pending   []Record
}

// NewWriter creates a Writer backed by the database at path. Call Init
// before using it.
func NewWriter(path string) *Writer {
	w := &Writer{dbPath: path, batchSize: 1000}
	atexit.Register(func() { w.Flush() })
	return w
}

// Init opens the database connection and prepares the schema. Safe to call
// once per Writer.
func (w *Writer) Init() error {
	db, err := sql.Open("sqlite3", w.dbPath)
	if err != nil {
		return err
	}
	w.db = db

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS trace (
		id TEXT PRIMARY KEY,
		time REAL,
		kind TEXT,
		owner TEXT,
		detail TEXT
	)`)
	if err != nil {
		return err
	}

	stmt, err := db.Prepare(`INSERT INTO trace (id, time, kind, owner, detail) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	w.statement = stmt

	return nil
}

// Write buffers r, flushing automatically once batchSize records accumulate.
func (w *Writer) Write(r Record) {
	w.pending = append(w.pending, r)
	if len(w.pending) >= w.batchSize {
		w.Flush()
	}
}

// Flush writes every buffered Record to the database in one transaction.
func (w *Writer) Flush() {
	if len(w.pending) == 0 || w.statement == nil {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	stmt := tx.Stmt(w.statement)
	for _, r := range w.pending {
		if _, err := stmt.Exec(r.ID, r.Time, r.Kind, r.Owner, r.Detail); err != nil {
			panic(err)
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.pending = nil
}

// Close flushes remaining records and closes the database connection.
func (w *Writer) Close() error {
	w.Flush()
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Hook adapts a Writer to des.Hook, translating HookCtx values into Records.
type Hook struct {
	writer *Writer
}

// NewHook wraps writer as a des.Hook.
func NewHook(writer *Writer) *Hook {
	return &Hook{writer: writer}
}

// Func implements des.Hook.
func (h *Hook) Func(ctx des.HookCtx) {
	switch ctx.Pos {
	case des.HookPosRegister:
		h.writer.Write(Record{
			ID:   xid.New().String(),
			Kind: "register",
			Owner: fmt.Sprintf("%v", ctx.Item),
		})

	case des.HookPosBeforeDeliver:
		e, ok := ctx.Item.(*des.Event)
		if !ok {
			return
		}
		h.writer.Write(Record{
			ID:    e.ID,
			Time:  e.Time,
			Kind:  "deliver",
			Owner: fmt.Sprintf("%v", e.Owner),
		})

	case des.HookPosInterrupt:
		e, ok := ctx.Item.(*des.Event)
		if !ok {
			return
		}
		h.writer.Write(Record{
			ID:     e.ID,
			Time:   e.Time,
			Kind:   "interrupt",
			Owner:  fmt.Sprintf("%v", e.Owner),
			Detail: fmt.Sprintf("%v", ctx.Detail),
		})

	case des.HookPosTerminate:
		r, ok := ctx.Item.(*des.Report)
		if !ok {
			return
		}
		h.writer.Write(Record{
			ID:     xid.New().String(),
			Time:   r.FinalTime,
			Kind:   "terminate",
			Detail: r.Termination.String(),
		})
	}
}
