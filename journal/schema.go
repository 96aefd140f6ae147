package journal

const Schema = `
CREATE TABLE IF NOT EXISTS legs (
	position_id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	volume REAL NOT NULL,
	entry_price REAL NOT NULL,
	close_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	net_profit REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_legs_close_time ON legs(close_time);

CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	source TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	decision TEXT NOT NULL,
	code TEXT NOT NULL,
	reason TEXT NOT NULL,
	legs_opened INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_time ON signals(time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	positive_groups INTEGER NOT NULL,
	negative_groups INTEGER NOT NULL,
	kill_switch BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
