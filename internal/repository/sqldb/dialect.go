package sqldb

// dialect holds the statements that differ between SQLite and MySQL.
// Timestamps are stored as UTC unix nanoseconds in both.
type dialect struct {
	name            string
	driver          string
	schema          []string
	insertSession   string
	upsertAssistant string
	lockSession     string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:   "sqlite",
		driver: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS chat_sessions (
				id                   TEXT    PRIMARY KEY,
				ip_address           TEXT    NOT NULL DEFAULT '',
				created_at           INTEGER NOT NULL,
				last_active          INTEGER NOT NULL,
				handed_off           INTEGER NOT NULL DEFAULT 0,
				handoff_requested_at INTEGER,
				message_count        INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chat_sessions_last_active ON chat_sessions (last_active DESC)`,
			`CREATE TABLE IF NOT EXISTS chat_messages (
				id          TEXT    PRIMARY KEY,
				session_id  TEXT    NOT NULL REFERENCES chat_sessions (id) ON DELETE CASCADE,
				seq         INTEGER NOT NULL,
				body        TEXT    NOT NULL,
				sender_type TEXT    NOT NULL CHECK (sender_type IN ('user', 'admin', 'ai')),
				created_at  INTEGER NOT NULL,
				UNIQUE (session_id, seq)
			)`,
			`CREATE TABLE IF NOT EXISTS assistant_config (
				id            INTEGER PRIMARY KEY CHECK (id = 1),
				enabled       INTEGER NOT NULL,
				provider      TEXT    NOT NULL,
				model         TEXT    NOT NULL,
				system_prompt TEXT    NOT NULL,
				temperature   REAL    NOT NULL,
				max_tokens    INTEGER NOT NULL,
				updated_at    INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS operators (
				id            TEXT    PRIMARY KEY,
				email         TEXT    NOT NULL UNIQUE,
				password_hash TEXT    NOT NULL,
				created_at    INTEGER NOT NULL
			)`,
		},
		insertSession: `
			INSERT INTO chat_sessions (id, ip_address, created_at, last_active, handed_off, message_count)
			VALUES (?, ?, ?, ?, 0, 0)
			ON CONFLICT (id) DO NOTHING`,
		upsertAssistant: `
			INSERT INTO assistant_config (id, enabled, provider, model, system_prompt, temperature, max_tokens, updated_at)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				enabled = excluded.enabled,
				provider = excluded.provider,
				model = excluded.model,
				system_prompt = excluded.system_prompt,
				temperature = excluded.temperature,
				max_tokens = excluded.max_tokens,
				updated_at = excluded.updated_at`,
		lockSession: `SELECT message_count, last_active FROM chat_sessions WHERE id = ?`,
	},
	"mysql": {
		name:   "mysql",
		driver: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS chat_sessions (
				id                   VARCHAR(128) NOT NULL PRIMARY KEY,
				ip_address           VARCHAR(64)  NOT NULL DEFAULT '',
				created_at           BIGINT       NOT NULL,
				last_active          BIGINT       NOT NULL,
				handed_off           BOOLEAN      NOT NULL DEFAULT FALSE,
				handoff_requested_at BIGINT       NULL,
				message_count        BIGINT       NOT NULL DEFAULT 0,
				INDEX idx_chat_sessions_last_active (last_active)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS chat_messages (
				id          CHAR(36)     NOT NULL PRIMARY KEY,
				session_id  VARCHAR(128) NOT NULL,
				seq         BIGINT       NOT NULL,
				body        TEXT         NOT NULL,
				sender_type VARCHAR(16)  NOT NULL,
				created_at  BIGINT       NOT NULL,
				UNIQUE KEY uq_chat_messages_session_seq (session_id, seq),
				CONSTRAINT fk_chat_messages_session FOREIGN KEY (session_id) REFERENCES chat_sessions (id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS assistant_config (
				id            TINYINT      NOT NULL PRIMARY KEY,
				enabled       BOOLEAN      NOT NULL,
				provider      VARCHAR(64)  NOT NULL,
				model         VARCHAR(128) NOT NULL,
				system_prompt TEXT         NOT NULL,
				temperature   DOUBLE       NOT NULL,
				max_tokens    INT          NOT NULL,
				updated_at    BIGINT       NOT NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS operators (
				id            CHAR(36)     NOT NULL PRIMARY KEY,
				email         VARCHAR(191) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				created_at    BIGINT       NOT NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
		insertSession: `
			INSERT IGNORE INTO chat_sessions (id, ip_address, created_at, last_active, handed_off, message_count)
			VALUES (?, ?, ?, ?, FALSE, 0)`,
		upsertAssistant: `
			INSERT INTO assistant_config (id, enabled, provider, model, system_prompt, temperature, max_tokens, updated_at)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				enabled = VALUES(enabled),
				provider = VALUES(provider),
				model = VALUES(model),
				system_prompt = VALUES(system_prompt),
				temperature = VALUES(temperature),
				max_tokens = VALUES(max_tokens),
				updated_at = VALUES(updated_at)`,
		lockSession: `SELECT message_count, last_active FROM chat_sessions WHERE id = ? FOR UPDATE`,
	},
}
