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
	"database/sql"
	"encoding/base64"
	"math/big"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/paulvi/xipki/pki"
	"github.com/paulvi/xipki/store"
)

func (st *storage) AddCRL(ca pki.NameID, crlDER []byte) (int64, error) {
	info, err := pki.ParseCRL(crlDER)
	if err != nil {
		return 0, store.WrapErr(store.BadRequest, err, "could not parse CRL")
	}
	id, err := st.idgen.NextID()
	if err != nil {
		return 0, store.WrapErr(store.SystemFailure, err, "could not allocate CRL id")
	}

	crlNo := sql.NullInt64{}
	if info.Number != nil {
		crlNo = sql.NullInt64{Int64: info.Number.Int64(), Valid: true}
	}
	baseNo := sql.NullInt64{}
	if info.BaseNumber != nil {
		baseNo = sql.NullInt64{Int64: info.BaseNumber.Int64(), Valid: true}
	}
	nextUpdate := sql.NullInt64{}
	if !info.NextUpdate.IsZero() {
		nextUpdate = sql.NullInt64{Int64: epoch(info.NextUpdate), Valid: true}
	}

	_, err = st.Exec(renumberPlaceholders(
		`INSERT INTO crl (id, ca_id, crl_no, thisupdate, nextupdate, deltacrl, basecrl_no, crl)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		id, ca.ID, crlNo, epoch(info.ThisUpdate), nextUpdate,
		b2i(info.IsDelta()), baseNo, base64.StdEncoding.EncodeToString(crlDER))
	if err != nil {
		return 0, wrapDB(err, "could not insert CRL %v of CA %d", info.Number, ca.ID)
	}

	st.Notify(store.CRLAdded{CA: ca, CRLNumber: info.Number, Delta: info.IsDelta()})
	return id, nil
}

func (st *storage) GetEncodedCRL(ca pki.NameID, crlNumber *big.Int) ([]byte, error) {
	var p predicates
	p.add(`ca_id = ?`, ca.ID)
	if crlNumber != nil {
		p.add(`crl_no = ?`, crlNumber.Int64())
	}

	var crlB64 string
	err := st.QueryRow(st.sqls.fetchFirst(
		`SELECT crl FROM crl`+p.clause()+` ORDER BY thisupdate DESC, crl_no DESC NULLS LAST`, 1),
		p.args...).Scan(&crlB64)
	if err == sql.ErrNoRows {
		return nil, store.ErrCRLNotFound
	} else if err != nil {
		return nil, wrapDB(err, "could not query CRL of CA %d", ca.ID)
	}
	der, err := base64.StdEncoding.DecodeString(crlB64)
	if err != nil {
		return nil, store.WrapErr(store.SystemFailure, err, "corrupt encoded CRL")
	}
	return der, nil
}

func (st *storage) GetMaxCRLNumber(ca pki.NameID) (int64, error) {
	var max sql.NullInt64
	err := st.QueryRow(renumberPlaceholders(
		`SELECT MAX(crl_no) FROM crl WHERE ca_id = ?`), ca.ID).Scan(&max)
	if err != nil {
		return 0, wrapDB(err, "could not query max CRL number of CA %d", ca.ID)
	}
	return max.Int64, nil
}

func (st *storage) GetThisUpdateOfCurrentCRL(ca pki.NameID) (int64, error) {
	var max sql.NullInt64
	err := st.QueryRow(renumberPlaceholders(
		`SELECT MAX(thisupdate) FROM crl WHERE ca_id = ? AND deltacrl = 0`), ca.ID).Scan(&max)
	if err != nil {
		return 0, wrapDB(err, "could not query current CRL of CA %d", ca.ID)
	}
	return max.Int64, nil
}

func (st *storage) HasCRL(ca pki.NameID) (bool, error) {
	var id int64
	err := st.QueryRow(st.sqls.fetchFirst(
		`SELECT id FROM crl WHERE ca_id = ?`, 1), ca.ID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, wrapDB(err, "could not query CRLs of CA %d", ca.ID)
	}
	return true, nil
}

// retentionCutoff determines, given the stored base CRL numbers, the
// exclusive upper bound on CRL numbers to delete so that the keep most
// recent base CRLs survive. Delta CRLs below the bound go with their
// bases. ok is false when nothing is to be deleted.
func retentionCutoff(baseNumbers []int64, keep int) (upto int64, deleted int, ok bool) {
	deleted = len(baseNumbers) - keep
	if deleted <= 0 {
		return 0, 0, false
	}
	sorted := append([]int64(nil), baseNumbers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[deleted-1] + 1, deleted, true
}

func (st *storage) CleanupCRLs(ca pki.NameID, keep int) (int, error) {
	if keep < 1 {
		return 0, store.Errorf(store.BadRequest, "invalid retention count %d", keep)
	}

	rows, err := st.Query(renumberPlaceholders(
		`SELECT crl_no FROM crl WHERE ca_id = ? AND deltacrl = 0`), ca.ID)
	if err != nil {
		return 0, wrapDB(err, "could not query CRL numbers of CA %d", ca.ID)
	}
	defer rows.Close()

	var baseNumbers []int64
	for rows.Next() {
		var no sql.NullInt64
		err := rows.Scan(&no)
		if err != nil {
			return 0, wrapDB(err, "could not query CRL numbers of CA %d", ca.ID)
		}
		// CRLs stored without a number sit outside number-based
		// retention.
		if no.Valid {
			baseNumbers = append(baseNumbers, no.Int64)
		}
	}
	err = rows.Err()
	if err != nil {
		return 0, errors.WithStack(err)
	}

	upto, deleted, ok := retentionCutoff(baseNumbers, keep)
	if !ok {
		return 0, nil
	}
	_, err = st.Exec(renumberPlaceholders(
		`DELETE FROM crl WHERE ca_id = ? AND crl_no < ?`), ca.ID, upto)
	if err != nil {
		return 0, wrapDB(err, "could not delete CRLs of CA %d", ca.ID)
	}
	return deleted, nil
}

func (st *storage) MaxDeltaCRLCacheID(ca pki.NameID) (int64, error) {
	var max sql.NullInt64
	err := st.QueryRow(renumberPlaceholders(
		`SELECT MAX(id) FROM deltacrl_cache WHERE ca_id = ?`), ca.ID).Scan(&max)
	if err != nil {
		return 0, wrapDB(err, "could not query delta CRL cache of CA %d", ca.ID)
	}
	return max.Int64, nil
}

func (st *storage) ClearDeltaCRLCache(ca pki.NameID, uptoID int64) error {
	_, err := st.Exec(renumberPlaceholders(
		`DELETE FROM deltacrl_cache WHERE ca_id = ? AND id <= ?`), ca.ID, uptoID)
	if err != nil {
		return wrapDB(err, "could not clear delta CRL cache of CA %d", ca.ID)
	}
	return nil
}

func (st *storage) GetRevokedCerts(ca pki.NameID, notExpiredAt time.Time, startID int64,
	limit int, onlyCACerts, onlyEECerts bool) ([]*store.RevInfoWithSerial, error) {

	if onlyCACerts && onlyEECerts {
		return nil, store.Errorf(store.BadRequest,
			"onlyCACerts and onlyEECerts cannot both be set")
	}

	var p predicates
	p.add(`ca_id = ?`, ca.ID)
	p.add(`rev = 1`)
	p.add(`id > ?`, startID)
	if !notExpiredAt.IsZero() {
		p.add(`nafter > ?`, epoch(notExpiredAt))
	}
	if onlyCACerts {
		p.add(`ee = 0`)
	} else if onlyEECerts {
		p.add(`ee = 1`)
	}

	coreSQL := `SELECT id, sn, rr, rt, rit FROM cert` + p.clause() + ` ORDER BY id`
	rows, err := st.Query(st.sqls.fetchFirst(coreSQL, limit), p.args...)
	if err != nil {
		return nil, wrapDB(err, "could not query revoked certificates of CA %d", ca.ID)
	}
	defer rows.Close()

	var result []*store.RevInfoWithSerial
	for rows.Next() {
		var id, rr, rt int64
		var rit sql.NullInt64
		var snHex string
		err := rows.Scan(&id, &snHex, &rr, &rt, &rit)
		if err != nil {
			return nil, wrapDB(err, "could not query revoked certificates of CA %d", ca.ID)
		}
		serial, err := parseSerialHex(snHex)
		if err != nil {
			return nil, err
		}
		entry := &store.RevInfoWithSerial{
			CertID:         id,
			Serial:         serial,
			Reason:         pki.CRLReason(rr),
			RevocationTime: fromEpoch(rt),
		}
		if rit.Valid {
			entry.InvalidityTime = fromEpoch(rit.Int64)
		}
		result = append(result, entry)
	}
	return result, errors.WithStack(rows.Err())
}

// GetCertsForDeltaCRL resolves pending delta-CRL cache entries against
// the current certificate state: still-revoked certificates keep their
// stored revocation, ones released in the meantime are reported with
// reason removeFromCRL and the release time.
func (st *storage) GetCertsForDeltaCRL(ca pki.NameID, startID int64, limit int,
	onlyCACerts, onlyEECerts bool) ([]*store.RevInfoWithSerial, error) {

	if onlyCACerts && onlyEECerts {
		return nil, store.Errorf(store.BadRequest,
			"onlyCACerts and onlyEECerts cannot both be set")
	}

	serials, err := st.deltaCRLCacheSerials(ca, startID, limit)
	if err != nil {
		return nil, err
	}

	stmt, err := st.Prepare(renumberPlaceholders(
		`SELECT id, ee, rev, rr, rt, rit, lupdate FROM cert WHERE ca_id = ? AND sn = ?`))
	if err != nil {
		return nil, wrapDB(err, "could not query certificates of CA %d", ca.ID)
	}
	defer stmt.Close()

	var result []*store.RevInfoWithSerial
	for _, snHex := range serials {
		var (
			certID, lupdate int64
			ee, rev         int
			rr, rt, rit     sql.NullInt64
		)
		err := stmt.QueryRow(ca.ID, snHex).Scan(&certID, &ee, &rev, &rr, &rt, &rit, &lupdate)
		if err == sql.ErrNoRows {
			// Certificate removed since the cache entry was written.
			continue
		} else if err != nil {
			return nil, wrapDB(err, "could not query certificate 0x%s", snHex)
		}
		if onlyCACerts && ee != 0 {
			continue
		}
		if onlyEECerts && ee != 1 {
			continue
		}

		serial, err2 := parseSerialHex(snHex)
		if err2 != nil {
			return nil, err2
		}
		entry := &store.RevInfoWithSerial{CertID: certID, Serial: serial}
		if rev != 0 {
			entry.Reason = pki.CRLReason(rr.Int64)
			entry.RevocationTime = fromEpoch(rt.Int64)
			if rit.Valid {
				entry.InvalidityTime = fromEpoch(rit.Int64)
			}
		} else {
			entry.Reason = pki.ReasonRemoveFromCRL
			entry.RevocationTime = fromEpoch(lupdate)
		}
		result = append(result, entry)
	}
	return result, nil
}

func (st *storage) deltaCRLCacheSerials(ca pki.NameID, startID int64, limit int) ([]string, error) {
	rows, err := st.Query(st.sqls.fetchFirst(
		`SELECT sn FROM deltacrl_cache WHERE ca_id = ? AND id > ? ORDER BY id`, limit),
		ca.ID, startID)
	if err != nil {
		return nil, wrapDB(err, "could not query delta CRL cache of CA %d", ca.ID)
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var snHex string
		err := rows.Scan(&snHex)
		if err != nil {
			return nil, wrapDB(err, "could not query delta CRL cache of CA %d", ca.ID)
		}
		serials = append(serials, snHex)
	}
	return serials, errors.WithStack(rows.Err())
}
