package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"QuantSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the CLI can read history while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			tick        INTEGER NOT NULL,
			run_count   INTEGER NOT NULL,
			next_due    INTEGER NOT NULL,
			accounts    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_tick ON cycles(tick)`,

		`CREATE TABLE IF NOT EXISTS account_passes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id     INTEGER NOT NULL REFERENCES cycles(id),
			account      TEXT NOT NULL,
			budget       TEXT,
			spent        TEXT,
			withheld     TEXT,
			dust         TEXT,
			value_before TEXT,
			value_after  TEXT,
			skipped      INTEGER NOT NULL DEFAULT 0,
			note         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passes_account ON account_passes(account)`,

		`CREATE TABLE IF NOT EXISTS buys (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			pass_id  INTEGER NOT NULL REFERENCES account_passes(id),
			symbol   TEXT NOT NULL,
			price    INTEGER NOT NULL,
			share    TEXT,
			bought   TEXT,
			cost     TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS reservation_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			tick        INTEGER NOT NULL,
			account     TEXT NOT NULL,
			action      TEXT NOT NULL,
			amount      INTEGER,
			remaining   INTEGER,
			valid_until INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_account ON reservation_events(account)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			tick             INTEGER NOT NULL,
			account          TEXT NOT NULL,
			remaining_amount INTEGER,
			remaining_ticks  INTEGER,
			message          TEXT,
			delivered        INTEGER NOT NULL,
			error            TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(evt *CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO cycles (timestamp, tick, run_count, next_due, accounts)
		VALUES (?,?,?,?,?)`,
		time.Now().Unix(), int64(evt.Tick), int64(evt.RunCount), int64(evt.NextDue), len(evt.Passes),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	cycleID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, p := range evt.Passes {
		res, err := tx.Exec(`INSERT INTO account_passes
			(cycle_id, account, budget, spent, withheld, dust, value_before, value_after, skipped, note)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			cycleID, string(p.Account), p.Budget.String(), p.Spent.String(),
			p.Withheld.String(), p.Dust.String(), p.ValueBefore.String(), p.ValueAfter.String(),
			p.Skipped, p.Note,
		)
		if err != nil {
			return fmt.Errorf("insert pass %s: %w", p.Account, err)
		}
		passID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, b := range p.Buys {
			if _, err := tx.Exec(`INSERT INTO buys (pass_id, symbol, price, share, bought, cost)
				VALUES (?,?,?,?,?,?)`,
				passID, b.Symbol, int64(b.Price), b.Share.String(), b.Bought.String(), b.Cost.String(),
			); err != nil {
				return fmt.Errorf("insert buy %s: %w", b.Symbol, err)
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordReservation(evt *ReservationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO reservation_events
		(timestamp, tick, account, action, amount, remaining, valid_until)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), int64(evt.Tick), string(evt.Account), evt.Action,
		int64(evt.Amount), int64(evt.Remaining), int64(evt.ValidUntil),
	)
	return err
}

func (r *SQLiteRecorder) RecordAlert(evt *AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO alerts
		(timestamp, tick, account, remaining_amount, remaining_ticks, message, delivered, error)
		VALUES (?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), int64(evt.Tick), string(evt.Alert.Account),
		int64(evt.Alert.RemainingAmount), int64(evt.Alert.RemainingTicks),
		evt.Alert.Message, evt.Delivered, evt.Error,
	)
	return err
}

// RecentCycles returns up to limit cycles, newest first.
func (r *SQLiteRecorder) RecentCycles(limit int) ([]CycleRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT tick, run_count, next_due, accounts
		FROM cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var tick, run, next int64
		var c CycleRow
		if err := rows.Scan(&tick, &run, &next, &c.Accounts); err != nil {
			return nil, err
		}
		c.Tick = model.Tick(tick)
		c.RunCount = uint64(run)
		c.NextDue = model.Tick(next)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
