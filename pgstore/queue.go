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

package pgstore

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/paulvi/xipki/pki"
)

func (st *storage) AddToPublishQueue(publisher, ca pki.NameID, certID int64) error {
	_, err := st.Exec(renumberPlaceholders(
		`INSERT INTO publishqueue (pid, ca_id, cid) VALUES (?, ?, ?)`),
		publisher.ID, ca.ID, certID)
	if err != nil {
		return wrapDB(err, "could not enqueue certificate %d for publisher %d", certID, publisher.ID)
	}
	return nil
}

func (st *storage) RemoveFromPublishQueue(publisher pki.NameID, certID int64) error {
	_, err := st.Exec(renumberPlaceholders(
		`DELETE FROM publishqueue WHERE pid = ? AND cid = ?`), publisher.ID, certID)
	if err != nil {
		return wrapDB(err, "could not dequeue certificate %d for publisher %d", certID, publisher.ID)
	}
	return nil
}

// GetPublishQueueEntries returns pending certificate ids for the
// publisher. Enqueueing never deduplicates, so duplicates are dropped
// here; the returned slice holds at most limit distinct ids.
func (st *storage) GetPublishQueueEntries(ca, publisher pki.NameID, limit int) ([]int64, error) {
	rows, err := st.Query(renumberPlaceholders(
		`SELECT cid FROM publishqueue WHERE pid = ? AND ca_id = ? ORDER BY cid`),
		publisher.ID, ca.ID)
	if err != nil {
		return nil, wrapDB(err, "could not query publish queue of publisher %d", publisher.ID)
	}
	defer rows.Close()

	seen := make(map[int64]bool)
	var result []int64
	for rows.Next() && len(result) < limit {
		var certID int64
		err := rows.Scan(&certID)
		if err != nil {
			return nil, wrapDB(err, "could not query publish queue of publisher %d", publisher.ID)
		}
		if seen[certID] {
			continue
		}
		seen[certID] = true
		result = append(result, certID)
	}
	return result, errors.WithStack(rows.Err())
}

func (st *storage) ClearPublishQueue(ca, publisher *pki.NameID) error {
	var exprs []string
	var args []interface{}
	if ca != nil {
		exprs = append(exprs, `ca_id = ?`)
		args = append(args, ca.ID)
	}
	if publisher != nil {
		exprs = append(exprs, `pid = ?`)
		args = append(args, publisher.ID)
	}
	sqlStr := `DELETE FROM publishqueue`
	if len(exprs) > 0 {
		sqlStr += ` WHERE ` + strings.Join(exprs, ` AND `)
	}
	_, err := st.Exec(renumberPlaceholders(sqlStr), args...)
	if err != nil {
		return wrapDB(err, "could not clear publish queue")
	}
	return nil
}
