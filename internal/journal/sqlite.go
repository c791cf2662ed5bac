package journal

import (
	"crypto/rand"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	if t.TradeID == "" {
		t.TradeID = newID(t.Time)
	}
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, session_id, symbol, side, qty, price, order_id, reason, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.SessionID, t.Symbol, t.Side,
		t.Qty, t.Price, t.OrderID, t.Reason, t.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordSession(s SessionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO sessions
		(session_id, symbol, exit_reason, starting_cash, ending_cash, profit, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Symbol, s.ExitReason,
		s.StartingCash, s.EndingCash, s.Profit, s.StartedAt, s.EndedAt,
	)
	return err
}

// TradesBySession returns the trades for one session in execution order.
func (j *SQLiteJournal) TradesBySession(sessionID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, session_id, symbol, side, qty, price, order_id, reason, time
		FROM trades WHERE session_id = ? ORDER BY time`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.TradeID, &t.SessionID, &t.Symbol, &t.Side,
			&t.Qty, &t.Price, &t.OrderID, &t.Reason, &t.Time); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func newID(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
