package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty INTEGER NOT NULL,
	price REAL NOT NULL,
	order_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	exit_reason TEXT NOT NULL,
	starting_cash REAL NOT NULL,
	ending_cash REAL NOT NULL,
	profit REAL NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`
