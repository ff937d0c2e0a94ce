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
	"crypto/x509"
	"crypto/x509/pkix"
	"database/sql"
	"encoding/base64"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/paulvi/xipki/pki"
	"github.com/paulvi/xipki/store"
)

// maxSubjectLen caps the searchable subject column. The full subject
// stays available in the encoded certificate.
const maxSubjectLen = 350

func caNameID(id int) pki.NameID {
	return pki.NameID{ID: id}
}

func parseSerialHex(snHex string) (*big.Int, error) {
	serial, ok := new(big.Int).SetString(snHex, 16)
	if !ok {
		return nil, store.Errorf(store.SystemFailure, "invalid serial %q in database", snHex)
	}
	return serial, nil
}

// scanRevocation assembles revocation info from the rev flag and its
// nullable companions, or nil for an unrevoked row.
func scanRevocation(rev int, rr, rt, rit sql.NullInt64) *pki.RevocationInfo {
	if rev == 0 {
		return nil
	}
	info := &pki.RevocationInfo{
		Reason:         pki.CRLReason(rr.Int64),
		RevocationTime: fromEpoch(rt.Int64),
	}
	if rit.Valid {
		info.InvalidityTime = fromEpoch(rit.Int64)
	}
	return info
}

func (st *storage) AddCertificate(req *store.AddCertRequest) (_ int64, retErr error) {
	if req == nil || req.Cert == nil {
		return 0, store.Errorf(store.BadRequest, "no certificate to add")
	}
	cert := req.Cert

	certID, err := st.idgen.NextID()
	if err != nil {
		return 0, store.WrapErr(store.SystemFailure, err, "could not allocate certificate id")
	}

	spki := req.SubjectPublicKey
	if spki == nil {
		spki = cert.RawSubjectPublicKeyInfo
	}

	subject := pki.CanonicalName(cert.Subject)
	fpReqSubject := sql.NullInt64{}
	reqSubject := sql.NullString{}
	if req.RequestedSubject != nil {
		canonical := pki.CanonicalName(*req.RequestedSubject)
		if canonical != subject {
			fpReqSubject = sql.NullInt64{Int64: pki.FpSubject(*req.RequestedSubject), Valid: true}
			reqSubject = sql.NullString{String: pki.CutText(canonical, maxSubjectLen), Valid: true}
		}
	}
	tid := sql.NullString{}
	if len(req.TransactionID) > 0 {
		tid = sql.NullString{String: base64.StdEncoding.EncodeToString(req.TransactionID), Valid: true}
	}
	uid := sql.NullInt64{}
	if req.UserID != nil {
		uid = sql.NullInt64{Int64: int64(*req.UserID), Valid: true}
	}

	tx, err := st.Begin()
	if err != nil {
		return 0, wrapDB(err, "could not begin transaction")
	}
	defer func() {
		if retErr != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(renumberPlaceholders(
		`INSERT INTO cert (id, lupdate, sn, subject, fp_s, fp_rs, fp_k, nbefore, nafter,
rev, pid, ca_id, rid, uid, ee, rtype, tid)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?)`),
		certID, epoch(time.Now()), pki.SerialHex(cert.SerialNumber),
		pki.CutText(subject, maxSubjectLen), pki.FpSubject(cert.Subject), fpReqSubject,
		pki.FpKey(spki), epoch(cert.NotBefore), epoch(cert.NotAfter),
		req.Profile.ID, req.CA.ID, req.Requestor.ID, uid,
		b2i(pki.IsEndEntity(cert)), int(req.RequestType), tid)
	if err != nil {
		return 0, wrapDB(err, "could not insert certificate 0x%s", pki.SerialHex(cert.SerialNumber))
	}

	_, err = tx.Exec(renumberPlaceholders(
		`INSERT INTO craw (cid, fp, req_subject, cert) VALUES (?, ?, ?, ?)`),
		certID, pki.Base64Fp(cert.Raw), reqSubject,
		base64.StdEncoding.EncodeToString(cert.Raw))
	if err != nil {
		return 0, wrapDB(err, "could not insert raw certificate 0x%s", pki.SerialHex(cert.SerialNumber))
	}

	// Listeners only hear about rows that actually persisted.
	err = tx.Commit()
	if err != nil {
		return 0, wrapDB(err, "could not store certificate 0x%s", pki.SerialHex(cert.SerialNumber))
	}
	st.Notify(store.CertAdded{CA: req.CA, CertID: certID, Serial: cert.SerialNumber})
	return certID, nil
}

func (st *storage) GetCertWithRevocationInfo(ca pki.NameID, serial *big.Int) (*store.CertWithRevocationInfo, error) {
	var (
		id          int64
		pid, rev    int
		rr, rt, rit sql.NullInt64
		certB64     string
	)
	err := st.QueryRow(renumberPlaceholders(
		`SELECT c.id, c.pid, c.rev, c.rr, c.rt, c.rit, r.cert
FROM cert c JOIN craw r ON r.cid = c.id
WHERE c.ca_id = ? AND c.sn = ?`),
		ca.ID, pki.SerialHex(serial)).Scan(&id, &pid, &rev, &rr, &rt, &rit, &certB64)
	if err == sql.ErrNoRows {
		return nil, store.ErrCertNotFound
	} else if err != nil {
		return nil, wrapDB(err, "could not query certificate 0x%s", pki.SerialHex(serial))
	}

	der, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return nil, store.WrapErr(store.SystemFailure, err, "corrupt encoded certificate")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, store.WrapErr(store.SystemFailure, err, "corrupt certificate in database")
	}

	return &store.CertWithRevocationInfo{
		CertWithID: store.CertWithID{CertID: id, Cert: cert, DER: der},
		ProfileID:  pid,
		Revocation: scanRevocation(rev, rr, rt, rit),
	}, nil
}

func (st *storage) RemoveCertificate(ca pki.NameID, serial *big.Int) error {
	result, err := st.Exec(renumberPlaceholders(
		`DELETE FROM cert WHERE ca_id = ? AND sn = ?`), ca.ID, pki.SerialHex(serial))
	if err != nil {
		return wrapDB(err, "could not delete certificate 0x%s", pki.SerialHex(serial))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrapDB(err, "could not delete certificate 0x%s", pki.SerialHex(serial))
	}
	if n == 0 {
		return store.ErrCertNotFound
	}
	return nil
}

func (st *storage) KnowsCertForSerial(ca pki.NameID, serial *big.Int) (store.KnownCert, error) {
	var uid sql.NullInt64
	err := st.QueryRow(renumberPlaceholders(
		`SELECT uid FROM cert WHERE ca_id = ? AND sn = ?`),
		ca.ID, pki.SerialHex(serial)).Scan(&uid)
	if err == sql.ErrNoRows {
		return store.KnownCert{}, nil
	} else if err != nil {
		return store.KnownCert{}, wrapDB(err, "could not query certificate 0x%s", pki.SerialHex(serial))
	}
	known := store.KnownCert{Known: true}
	if uid.Valid {
		userID := int(uid.Int64)
		known.UserID = &userID
	}
	return known, nil
}

func (st *storage) GetCertStatusForSubject(ca pki.NameID, subject pkix.Name) (pki.CertStatus, error) {
	var rev int
	err := st.QueryRow(st.sqls.fetchFirst(
		`SELECT rev FROM cert WHERE ca_id = ? AND fp_s = ? ORDER BY id DESC`, 1),
		ca.ID, pki.FpSubject(subject)).Scan(&rev)
	if err == sql.ErrNoRows {
		return pki.StatusUnknown, nil
	} else if err != nil {
		return pki.StatusUnknown, wrapDB(err, "could not query status of subject %q", subject.String())
	}
	if rev != 0 {
		return pki.StatusRevoked, nil
	}
	return pki.StatusGood, nil
}

func (st *storage) IsCertForSubjectIssued(ca pki.NameID, subjectFp int64) (bool, error) {
	return st.existsCert(ca, "fp_s", subjectFp)
}

func (st *storage) IsCertForKeyIssued(ca pki.NameID, keyFp int64) (bool, error) {
	return st.existsCert(ca, "fp_k", keyFp)
}

func (st *storage) existsCert(ca pki.NameID, column string, fp int64) (bool, error) {
	var id int64
	err := st.QueryRow(st.sqls.fetchFirst(
		`SELECT id FROM cert WHERE ca_id = ? AND `+column+` = ?`, 1),
		ca.ID, fp).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, wrapDB(err, "could not query cert existence by %s", column)
	}
	return true, nil
}

func (st *storage) GetCountOfCerts(ca pki.NameID, onlyRevoked bool) (int64, error) {
	coreSQL := `SELECT COUNT(*) FROM cert WHERE ca_id = ?`
	if onlyRevoked {
		coreSQL += ` AND rev = 1`
	}
	var count int64
	err := st.QueryRow(renumberPlaceholders(coreSQL), ca.ID).Scan(&count)
	if err != nil {
		return 0, wrapDB(err, "could not count certificates of CA %d", ca.ID)
	}
	return count, nil
}

var certListOrderSQL = map[store.CertListOrder]string{
	store.OrderNotBefore:     " ORDER BY nbefore",
	store.OrderNotBeforeDesc: " ORDER BY nbefore DESC",
	store.OrderNotAfter:      " ORDER BY nafter",
	store.OrderNotAfterDesc:  " ORDER BY nafter DESC",
	store.OrderSubject:       " ORDER BY subject",
	store.OrderSubjectDesc:   " ORDER BY subject DESC",
}

func (st *storage) ListCertificates(ca pki.NameID, subjectPattern string,
	validFrom, validTo time.Time, orderBy store.CertListOrder, limit int) ([]*store.CertListInfo, error) {

	var p predicates
	p.add(`ca_id = ?`, ca.ID)
	if subjectPattern != "" {
		pattern, err := pki.SubjectLikePattern(subjectPattern)
		if err != nil {
			return nil, store.WrapErr(store.BadRequest, err, "invalid subject pattern")
		}
		p.add(`subject LIKE ?`, pattern)
	}
	if !validFrom.IsZero() {
		p.add(`nbefore >= ?`, epoch(validFrom))
	}
	if !validTo.IsZero() {
		p.add(`nbefore < ?`, epoch(validTo))
	}

	coreSQL := `SELECT sn, subject, nbefore, nafter FROM cert` + p.clause() + certListOrderSQL[orderBy]
	rows, err := st.Query(st.sqls.fetchFirst(coreSQL, limit), p.args...)
	if err != nil {
		return nil, wrapDB(err, "could not list certificates of CA %d", ca.ID)
	}
	defer rows.Close()

	var result []*store.CertListInfo
	for rows.Next() {
		var snHex, subject string
		var nbefore, nafter int64
		err := rows.Scan(&snHex, &subject, &nbefore, &nafter)
		if err != nil {
			return nil, wrapDB(err, "could not list certificates of CA %d", ca.ID)
		}
		serial, err := parseSerialHex(snHex)
		if err != nil {
			return nil, err
		}
		result = append(result, &store.CertListInfo{
			Serial:    serial,
			Subject:   subject,
			NotBefore: fromEpoch(nbefore),
			NotAfter:  fromEpoch(nafter),
		})
	}
	return result, errors.WithStack(rows.Err())
}

func (st *storage) GetSerialNumbers(ca pki.NameID, notExpiredAt time.Time, startID int64,
	limit int, onlyRevoked, onlyCACerts, onlyEECerts bool) ([]store.SerialWithID, error) {

	if onlyCACerts && onlyEECerts {
		return nil, store.Errorf(store.BadRequest,
			"onlyCACerts and onlyEECerts cannot both be set")
	}

	var p predicates
	p.add(`ca_id = ?`, ca.ID)
	p.add(`id > ?`, startID)
	if !notExpiredAt.IsZero() {
		p.add(`nafter >= ?`, epoch(notExpiredAt))
	}
	if onlyRevoked {
		p.add(`rev = 1`)
	}
	if onlyCACerts {
		p.add(`ee = 0`)
	} else if onlyEECerts {
		p.add(`ee = 1`)
	}

	coreSQL := `SELECT id, sn FROM cert` + p.clause() + ` ORDER BY id`
	rows, err := st.Query(st.sqls.fetchFirst(coreSQL, limit), p.args...)
	if err != nil {
		return nil, wrapDB(err, "could not query serials of CA %d", ca.ID)
	}
	defer rows.Close()

	var result []store.SerialWithID
	for rows.Next() {
		var id int64
		var snHex string
		err := rows.Scan(&id, &snHex)
		if err != nil {
			return nil, wrapDB(err, "could not query serials of CA %d", ca.ID)
		}
		serial, err := parseSerialHex(snHex)
		if err != nil {
			return nil, err
		}
		result = append(result, store.SerialWithID{ID: id, Serial: serial})
	}
	return result, errors.WithStack(rows.Err())
}

func (st *storage) GetExpiredSerialNumbers(ca pki.NameID, expiredAt time.Time, limit int) ([]*big.Int, error) {
	return st.querySerials(st.sqls.fetchFirst(
		`SELECT sn FROM cert WHERE ca_id = ? AND nafter < ?`, limit),
		ca.ID, epoch(expiredAt))
}

func (st *storage) GetSuspendedCertSerials(ca pki.NameID, lastUpdatedBefore time.Time, limit int) ([]*big.Int, error) {
	return st.querySerials(st.sqls.fetchFirst(
		`SELECT sn FROM cert WHERE ca_id = ? AND lupdate < ? AND rr = ?`, limit),
		ca.ID, epoch(lastUpdatedBefore), int(pki.ReasonCertificateHold))
}

func (st *storage) querySerials(sqlStr string, args ...interface{}) ([]*big.Int, error) {
	rows, err := st.Query(sqlStr, args...)
	if err != nil {
		return nil, wrapDB(err, "could not query serials")
	}
	defer rows.Close()

	var result []*big.Int
	for rows.Next() {
		var snHex string
		err := rows.Scan(&snHex)
		if err != nil {
			return nil, wrapDB(err, "could not query serials")
		}
		serial, err := parseSerialHex(snHex)
		if err != nil {
			return nil, err
		}
		result = append(result, serial)
	}
	return result, errors.WithStack(rows.Err())
}
