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
	"math/big"
	"time"

	"github.com/paulvi/xipki/pki"
	"github.com/paulvi/xipki/store"
)

// validateRevocation decides whether a certificate in the given current
// revocation state (nil if unrevoked) may transition to the requested
// one, and returns the effective revocation to store. Re-revoking a
// certificate under certificateHold with a definitive reason inherits
// the hold's revocation and invalidity times; replacing any other
// revocation requires force.
func validateRevocation(current, requested *pki.RevocationInfo, force bool) (*pki.RevocationInfo, error) {
	effective := *requested
	if effective.RevocationTime.IsZero() {
		effective.RevocationTime = time.Now().UTC()
	}
	if current == nil {
		return &effective, nil
	}

	if current.OnHold() {
		if requested.Reason == pki.ReasonCertificateHold {
			return nil, store.Errorf(store.CertAlreadyRevoked,
				"certificate already suspended")
		}
		effective.RevocationTime = current.RevocationTime
		effective.InvalidityTime = current.InvalidityTime
		return &effective, nil
	}
	if !force {
		return nil, store.Errorf(store.CertAlreadyRevoked,
			"certificate already revoked with reason %s", current.Reason)
	}
	return &effective, nil
}

// validateUnrevocation checks that a release is permitted: without
// force only certificateHold may be released.
func validateUnrevocation(current *pki.RevocationInfo, force bool) error {
	if current == nil {
		return store.Errorf(store.CertNotRevoked, "certificate is not revoked")
	}
	if !force && !current.OnHold() {
		return store.Errorf(store.NotPermitted,
			"certificate revoked with reason %s cannot be released", current.Reason)
	}
	return nil
}

func (st *storage) RevokeCert(ca pki.NameID, serial *big.Int, rev *pki.RevocationInfo,
	force, publishToDeltaCache bool) (*store.CertWithRevocationInfo, error) {

	if rev == nil {
		return nil, store.Errorf(store.BadRequest, "no revocation info")
	}

	certInfo, err := st.GetCertWithRevocationInfo(ca, serial)
	if err != nil {
		return nil, err
	}

	effective, err := validateRevocation(certInfo.Revocation, rev, force)
	if err != nil {
		return nil, err
	}

	err = st.writeRevocation(ca, certInfo, effective)
	if err != nil {
		return nil, err
	}
	if publishToDeltaCache {
		err = st.addToDeltaCRLCache(ca, serial)
		if err != nil {
			return nil, err
		}
	}

	certInfo.Revocation = effective
	st.Notify(store.CertRevoked{CA: ca, Serial: serial, Reason: effective.Reason})
	return certInfo, nil
}

func (st *storage) RevokeSuspendedCert(ca pki.NameID, serial *big.Int, reason pki.CRLReason,
	publishToDeltaCache bool) (*store.CertWithRevocationInfo, error) {

	if reason == pki.ReasonCertificateHold || reason == pki.ReasonRemoveFromCRL {
		return nil, store.Errorf(store.BadRequest,
			"reason %s cannot replace a suspension", reason)
	}

	certInfo, err := st.GetCertWithRevocationInfo(ca, serial)
	if err != nil {
		return nil, err
	}
	current := certInfo.Revocation
	if current == nil {
		return nil, store.Errorf(store.CertNotRevoked, "certificate is not revoked")
	}
	if !current.OnHold() {
		return nil, store.Errorf(store.NotPermitted,
			"certificate is revoked with reason %s, not suspended", current.Reason)
	}

	effective := &pki.RevocationInfo{
		Reason:         reason,
		RevocationTime: current.RevocationTime,
		InvalidityTime: current.InvalidityTime,
	}
	err = st.writeRevocation(ca, certInfo, effective)
	if err != nil {
		return nil, err
	}
	if publishToDeltaCache {
		err = st.addToDeltaCRLCache(ca, serial)
		if err != nil {
			return nil, err
		}
	}

	certInfo.Revocation = effective
	st.Notify(store.CertRevoked{CA: ca, Serial: serial, Reason: reason})
	return certInfo, nil
}

func (st *storage) UnrevokeCert(ca pki.NameID, serial *big.Int,
	force, publishToDeltaCache bool) (*store.CertWithID, error) {

	certInfo, err := st.GetCertWithRevocationInfo(ca, serial)
	if err != nil {
		return nil, err
	}
	err = validateUnrevocation(certInfo.Revocation, force)
	if err != nil {
		return nil, err
	}

	result, err := st.Exec(renumberPlaceholders(
		`UPDATE cert SET lupdate = ?, rev = 0, rr = NULL, rt = NULL, rit = NULL
WHERE id = ? AND rev = 1 AND COALESCE(rr, -1) = ?`),
		epoch(time.Now()), certInfo.CertID, int64(certInfo.Revocation.Reason))
	if err != nil {
		return nil, wrapDB(err, "could not unrevoke certificate 0x%s", pki.SerialHex(serial))
	}
	err = checkOneRowTouched(result, serial)
	if err != nil {
		return nil, err
	}

	if publishToDeltaCache {
		err = st.addToDeltaCRLCache(ca, serial)
		if err != nil {
			return nil, err
		}
	}

	st.Notify(store.CertUnrevoked{CA: ca, Serial: serial})
	return &certInfo.CertWithID, nil
}

// writeRevocation stores the effective revocation with a guard on the
// state observed during the read, so a concurrent transition surfaces
// as an error instead of being silently overwritten.
func (st *storage) writeRevocation(ca pki.NameID, certInfo *store.CertWithRevocationInfo,
	effective *pki.RevocationInfo) error {

	rit := sql.NullInt64{}
	if !effective.InvalidityTime.IsZero() {
		rit = sql.NullInt64{Int64: epoch(effective.InvalidityTime), Valid: true}
	}
	priorRR := int64(-1)
	if certInfo.Revocation != nil {
		priorRR = int64(certInfo.Revocation.Reason)
	}

	result, err := st.Exec(renumberPlaceholders(
		`UPDATE cert SET lupdate = ?, rev = 1, rr = ?, rt = ?, rit = ?
WHERE id = ? AND rev = ? AND COALESCE(rr, -1) = ?`),
		epoch(time.Now()), int(effective.Reason), epoch(effective.RevocationTime), rit,
		certInfo.CertID, b2i(certInfo.Revocation != nil), priorRR)
	if err != nil {
		return wrapDB(err, "could not revoke certificate %d", certInfo.CertID)
	}
	return checkOneRowTouched(result, certInfo.Cert.SerialNumber)
}

func checkOneRowTouched(result sql.Result, serial *big.Int) error {
	n, err := result.RowsAffected()
	if err != nil {
		return wrapDB(err, "could not update certificate 0x%s", pki.SerialHex(serial))
	}
	if n == 0 {
		return store.Errorf(store.SystemFailure,
			"certificate 0x%s was modified concurrently", pki.SerialHex(serial))
	}
	return nil
}

func (st *storage) addToDeltaCRLCache(ca pki.NameID, serial *big.Int) error {
	id, err := st.idgen.NextID()
	if err != nil {
		return store.WrapErr(store.SystemFailure, err, "could not allocate cache entry id")
	}
	_, err = st.Exec(renumberPlaceholders(
		`INSERT INTO deltacrl_cache (id, ca_id, sn) VALUES (?, ?, ?)`),
		id, ca.ID, pki.SerialHex(serial))
	if err != nil {
		return wrapDB(err, "could not record 0x%s for delta CRL", pki.SerialHex(serial))
	}
	return nil
}
