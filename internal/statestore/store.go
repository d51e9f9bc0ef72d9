// Package statestore persists cross-restart service state and the
// unhandled-event queue, spec.md §4.J / §6 "Statefile format (v1)". The
// original implementation rewrites one flat binary file every cycle; this
// port keeps the durability guarantee (nothing survives a crash mid-write
// torn) but backs it with a SQLite database, following the teacher's own
// persistence layer (internal/db/schema.go) rather than hand-rolling a
// second on-disk format next to the one the teacher already uses.
package statestore

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ocochard/monit/internal/model"
)

const (
	createServiceStateTable = `
	CREATE TABLE IF NOT EXISTS service_state (
		name      TEXT NOT NULL,
		type      INTEGER NOT NULL,
		monitor   INTEGER NOT NULL,
		nstart    INTEGER NOT NULL,
		ncycle    INTEGER NOT NULL,
		inode     INTEGER NOT NULL DEFAULT 0,
		readpos   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (name, type)
	);`

	createEventQueueTable = `
	CREATE TABLE IF NOT EXISTS event_queue (
		id           INTEGER PRIMARY KEY,
		service      TEXT NOT NULL,
		monitor_snap INTEGER NOT NULL,
		type_snap    INTEGER NOT NULL,
		kind         INTEGER NOT NULL,
		state        INTEGER NOT NULL,
		state_changed INTEGER NOT NULL,
		handler      INTEGER NOT NULL,
		state_map    INTEGER NOT NULL,
		count        INTEGER NOT NULL,
		message      TEXT NOT NULL,
		action       INTEGER NOT NULL,
		collected_at INTEGER NOT NULL
	);`
)

// Store wraps a SQLite connection holding both the restart-survival
// service state (spec.md §4.J) and the unhandled-event queue (spec.md
// §4.E step 6).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the state database at path and
// ensures its schema exists, grounded on the teacher's InitDB.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("statestore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: ping %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		log.Printf("[WARN] statestore: failed to enable WAL mode: %v", err)
	}
	if _, err := db.Exec(createServiceStateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: create service_state: %w", err)
	}
	if _, err := db.Exec(createEventQueueTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: create event_queue: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Load restores nstart/ncycle/monitor and, for File services, the
// (inode, readpos) pair onto every service in g that has a matching
// (name, type) row, applying the monitor-flag restore policy of spec.md
// §4.J: an explicit Not always wins (operator paused it on purpose);
// otherwise a fresh (Not) service is upgraded to Init so it gets picked
// up on the first cycle.
func (s *Store) Load(g *model.Graph) error {
	rows, err := s.db.Query(`SELECT name, type, monitor, nstart, ncycle, inode, readpos FROM service_state`)
	if err != nil {
		return fmt.Errorf("statestore: load: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var typ, monitor, nstart, ncycle int
		var inode, readpos uint64
		if err := rows.Scan(&name, &typ, &monitor, &nstart, &ncycle, &inode, &readpos); err != nil {
			return fmt.Errorf("statestore: load: scan: %w", err)
		}
		svc, ok := g.Lookup(name)
		if !ok || svc.Type != model.Type(typ) {
			continue // service renamed/retyped/removed across config reload
		}
		svc.NStart = nstart
		svc.NCycle = ncycle

		restored := model.Monitor(monitor)
		if restored == model.MonitorNot {
			svc.Monitor = model.MonitorNot
		} else if svc.Monitor == model.MonitorNot {
			svc.Monitor = model.MonitorInit
		}

		if svc.Type == model.TypeFile && (inode != 0 || readpos != 0) {
			// Populate Inode, not PrevInode: check.File compares the freshly
			// stat'd inode against info.Inode to detect rotation, so a
			// restored value must look like "the inode we last observed",
			// or the very first post-restart check sees a bogus rotation
			// and throws the just-restored ReadPos away.
			svc.Info = &model.FileInfo{Inode: inode, ReadPos: readpos}
		}
	}
	return rows.Err()
}

// Save truncates and rewrites the service_state table from the current
// Graph, inside one transaction so readers never observe a torn state
// (the SQL analogue of the original's ftruncate+rewrite+fsync), spec.md
// §4.J "After every cycle".
func (s *Store) Save(g *model.Graph) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statestore: save: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM service_state`); err != nil {
		return fmt.Errorf("statestore: save: clear: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO service_state (name, type, monitor, nstart, ncycle, inode, readpos) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("statestore: save: prepare: %w", err)
	}
	defer stmt.Close()

	for _, svc := range g.All() {
		var inode, readpos uint64
		if info, ok := svc.Info.(*model.FileInfo); ok {
			inode, readpos = info.Inode, info.ReadPos
		}
		// Waiting is a transient "skipped this cycle" marker, not meant to
		// survive a restart (original_source/src/state.c's State_save masks
		// it the same way before writing the monitor field).
		monitor := svc.Monitor &^ model.MonitorWaiting
		if _, err := stmt.Exec(svc.Name, int(svc.Type), int(monitor), svc.NStart, svc.NCycle, inode, readpos); err != nil {
			return fmt.Errorf("statestore: save: insert %s: %w", svc.Name, err)
		}
	}
	return tx.Commit()
}
