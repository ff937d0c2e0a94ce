/*
   xipki - Certificate Authority state store
   Copyright (C) 2024  The xipki authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package pgstore implements the CA certificate store on PostgreSQL.
package pgstore

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/paulvi/xipki/idgen"
	"github.com/paulvi/xipki/store"
)

type storage struct {
	*sql.DB
	idgen *idgen.Generator
	sqls  *sqlCache

	mu        sync.Mutex
	listeners []func(store.CertChange) error
}

var _ store.Storage = (*storage)(nil)

var crTablesSQL = []string{
	`CREATE TABLE IF NOT EXISTS cert (
id BIGINT NOT NULL PRIMARY KEY,
lupdate BIGINT NOT NULL,
sn TEXT NOT NULL,
subject TEXT NOT NULL,
fp_s BIGINT NOT NULL,
fp_rs BIGINT,
fp_k BIGINT NOT NULL,
nbefore BIGINT NOT NULL,
nafter BIGINT NOT NULL,
rev SMALLINT NOT NULL DEFAULT 0,
rr SMALLINT,
rt BIGINT,
rit BIGINT,
pid INT NOT NULL,
ca_id INT NOT NULL,
rid INT,
uid INT,
ee SMALLINT NOT NULL,
rtype SMALLINT NOT NULL,
tid TEXT,
UNIQUE (ca_id, sn)
)`,
	`CREATE TABLE IF NOT EXISTS craw (
cid BIGINT NOT NULL PRIMARY KEY,
fp TEXT NOT NULL,
req_subject TEXT,
cert TEXT NOT NULL,
FOREIGN KEY (cid) REFERENCES cert(id) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS crl (
id BIGINT NOT NULL PRIMARY KEY,
ca_id INT NOT NULL,
crl_no BIGINT,
thisupdate BIGINT NOT NULL,
nextupdate BIGINT,
deltacrl SMALLINT NOT NULL,
basecrl_no BIGINT,
crl TEXT NOT NULL,
UNIQUE (ca_id, crl_no, deltacrl)
)`,
	`CREATE TABLE IF NOT EXISTS publishqueue (
cid BIGINT NOT NULL,
pid INT NOT NULL,
ca_id INT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS deltacrl_cache (
id BIGINT NOT NULL PRIMARY KEY,
ca_id INT NOT NULL,
sn TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS request (
id BIGINT NOT NULL PRIMARY KEY,
lupdate BIGINT NOT NULL,
data TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS reqcert (
id BIGINT NOT NULL PRIMARY KEY,
rid BIGINT NOT NULL,
cid BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS tuser (
id INT NOT NULL PRIMARY KEY,
name TEXT NOT NULL UNIQUE,
active SMALLINT NOT NULL,
password TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ca_has_user (
id BIGINT NOT NULL PRIMARY KEY,
ca_id INT NOT NULL,
user_id INT NOT NULL,
permission INT NOT NULL,
profiles TEXT,
UNIQUE (ca_id, user_id)
)`,
}

var crIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_cert_ca_sn ON cert(ca_id, sn);`,
	`CREATE INDEX IF NOT EXISTS idx_cert_ca_fps ON cert(ca_id, fp_s);`,
	`CREATE INDEX IF NOT EXISTS idx_cert_ca_fpk ON cert(ca_id, fp_k);`,
	`CREATE INDEX IF NOT EXISTS idx_cert_nafter ON cert(nafter);`,
	`CREATE INDEX IF NOT EXISTS idx_crl_ca ON crl(ca_id);`,
	`CREATE INDEX IF NOT EXISTS idx_pq_pid_cid ON publishqueue(pid, cid);`,
	`CREATE INDEX IF NOT EXISTS idx_dcc_ca ON deltacrl_cache(ca_id);`,
	`CREATE INDEX IF NOT EXISTS idx_reqcert_cid ON reqcert(cid);`,
}

// Dial returns PostgreSQL storage connected to the given database URL.
// shard is this process's id-generator shard; processes sharing the
// database must use distinct shards.
func Dial(url string, shard int) (store.Storage, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return New(db, shard)
}

// New returns a PostgreSQL storage implementation for a CA server.
func New(db *sql.DB, shard int) (store.Storage, error) {
	gen, err := idgen.New(shard)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create id generator")
	}
	sqls, err := newSQLCache()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	st := &storage{
		DB:    db,
		idgen: gen,
		sqls:  sqls,
	}
	err = st.createTables()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tables")
	}
	err = st.createIndexes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create indexes")
	}
	return st, nil
}

func (st *storage) createTables() error {
	for _, crTableSQL := range crTablesSQL {
		_, err := st.Exec(crTableSQL)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (st *storage) createIndexes() error {
	for _, crIndexSQL := range crIndexesSQL {
		_, err := st.Exec(crIndexSQL)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (st *storage) IsHealthy() bool {
	var one int
	err := st.QueryRow("SELECT 1").Scan(&one)
	if err != nil {
		log.Errorf("health check failed: %v", err)
		return false
	}
	return one == 1
}

func (st *storage) Subscribe(f func(store.CertChange) error) {
	st.mu.Lock()
	st.listeners = append(st.listeners, f)
	st.mu.Unlock()
}

func (st *storage) Notify(change store.CertChange) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	log.Debugf("%v", change)
	for _, f := range st.listeners {
		err := f(change)
		if err != nil {
			log.Errorf("error notifying listener: %v", err)
		}
	}
	return nil
}

func (st *storage) RenotifyAll() error {
	rows, err := st.Query("SELECT id, sn, ca_id FROM cert")
	if err != nil {
		return errors.WithStack(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var snHex string
		var caID int
		err := rows.Scan(&id, &snHex, &caID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return errors.WithStack(err)
		}
		serial, err := parseSerialHex(snHex)
		if err != nil {
			return err
		}
		st.Notify(store.CertAdded{CA: caNameID(caID), CertID: id, Serial: serial})
	}
	err = rows.Err()
	return errors.WithStack(err)
}

// wrapDB maps a database error to a store error. sql.ErrNoRows must be
// handled at the call site before wrapping.
func wrapDB(err error, format string, args ...interface{}) error {
	return store.WrapErr(store.DatabaseFailure, errors.WithStack(err),
		fmt.Sprintf(format, args...))
}

// epoch converts a time to the epoch-seconds representation used in all
// time columns. The zero time maps to 0.
func epoch(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromEpoch(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// b2i encodes a bool into the SMALLINT 0/1 convention of the schema.
func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
