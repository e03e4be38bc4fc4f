/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fixengine/fixerr"
)

const createTableQuery = `
CREATE TABLE IF NOT EXISTS messages (
	connection_name TEXT NOT NULL,
	direction       TEXT NOT NULL,
	seq_num         INTEGER NOT NULL,
	raw             BLOB NOT NULL,
	sending_time    TEXT NOT NULL,
	PRIMARY KEY (connection_name, direction, seq_num)
)`

const upsertQuery = `
INSERT INTO messages (connection_name, direction, seq_num, raw, sending_time)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(connection_name, direction, seq_num) DO UPDATE SET raw=excluded.raw, sending_time=excluded.sending_time`

const selectOneQuery = `SELECT raw, sending_time FROM messages WHERE connection_name=? AND direction=? AND seq_num=?`

const selectRangeQuery = `
SELECT seq_num, raw, sending_time FROM messages
WHERE connection_name=? AND direction=? AND seq_num>=? AND (? = 0 OR seq_num<=?)
ORDER BY seq_num ASC`

const maxSeqQuery = `SELECT COALESCE(MAX(seq_num), 0) FROM messages WHERE connection_name=? AND direction=?`

const deleteDirectionQuery = `DELETE FROM messages WHERE connection_name=? AND direction=?`

// SQLiteStore is the persistent Store implementation (spec.md §6,
// "Implementations: ... an external key-value backend", and spec.md
// §6, "Persisted state layout": "the message store persists sequence
// numbers and per-message records"). Grounded on the teacher's
// MarketDataDb (database/marketdata.go): WAL journal mode, a single
// *sql.DB, and a prepared statement for the hot insert path.
type SQLiteStore struct {
	db     *sql.DB
	stmtPut *sql.Stmt
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed message
// store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite database: %w", err)
	}

	if _, err := db.Exec(createTableQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	stmt, err := db.Prepare(upsertQuery)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: prepare upsert statement: %w", err)
	}

	log.Printf("store: sqlite message store initialized at %s", dbPath)
	return &SQLiteStore{db: db, stmtPut: stmt}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, connectionName string, dir Direction, seqNum int, raw []byte, sendingTime time.Time) error {
	_, err := s.stmtPut.ExecContext(ctx, connectionName, string(dir), seqNum, raw, sendingTime.Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, connectionName string, dir Direction, seqNum int) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectOneQuery, connectionName, string(dir), seqNum)

	var raw []byte
	var sendingTime string
	if err := row.Scan(&raw, &sendingTime); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, fixerr.ErrNotFound
		}
		return Record{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, sendingTime)
	if err != nil {
		return Record{}, fmt.Errorf("store: parse stored sending time: %w", err)
	}
	return Record{SeqNum: seqNum, Raw: raw, SendingTime: t}, nil
}

func (s *SQLiteStore) Range(ctx context.Context, connectionName string, dir Direction, lo, hi int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRangeQuery, connectionName, string(dir), lo, hi, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var sendingTime string
		if err := rows.Scan(&rec.SeqNum, &rec.Raw, &sendingTime); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, sendingTime)
		if err != nil {
			return nil, fmt.Errorf("store: parse stored sending time: %w", err)
		}
		rec.SendingTime = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CurrentSeq(ctx context.Context, connectionName string, dir Direction) (int, error) {
	var max int
	row := s.db.QueryRowContext(ctx, maxSeqQuery, connectionName, string(dir))
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (s *SQLiteStore) Reset(ctx context.Context, connectionName string, dir Direction) error {
	_, err := s.db.ExecContext(ctx, deleteDirectionQuery, connectionName, string(dir))
	return err
}

func (s *SQLiteStore) Close() error {
	_ = s.stmtPut.Close()
	return s.db.Close()
}
