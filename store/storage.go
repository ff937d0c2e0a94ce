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

// Package store defines the API of the CA certificate store: the
// operations protocol front ends, the CRL generator and the publisher
// fan-out workers depend on for durable, consistent state.
package store

import (
	"crypto/x509/pkix"
	"io"
	"math/big"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/paulvi/xipki/pki"
)

// Storage is the complete API a storage backend implements.
type Storage interface {
	io.Closer
	Certs
	Revocations
	CRLs
	PublishQueue
	Requests
	Users
	Notifier

	// IsHealthy probes the backing store.
	IsHealthy() bool
}

// Certs is the certificate persistence and query surface.
type Certs interface {
	// AddCertificate persists a newly issued certificate and its
	// encoded bytes as one atomic unit and returns the allocated
	// certificate id. On failure nothing remains persisted.
	AddCertificate(req *AddCertRequest) (int64, error)

	// GetCertWithRevocationInfo looks up a certificate by CA and
	// serial. Returns ErrCertNotFound if absent.
	GetCertWithRevocationInfo(ca pki.NameID, serial *big.Int) (*CertWithRevocationInfo, error)

	// RemoveCertificate deletes a certificate row. Administrative use
	// only.
	RemoveCertificate(ca pki.NameID, serial *big.Int) error

	// KnowsCertForSerial reports whether the CA issued a certificate
	// with the given serial, and the requesting user if recorded.
	KnowsCertForSerial(ca pki.NameID, serial *big.Int) (KnownCert, error)

	// GetCertStatusForSubject is a point status query by canonical
	// subject.
	GetCertStatusForSubject(ca pki.NameID, subject pkix.Name) (pki.CertStatus, error)

	// IsCertForSubjectIssued and IsCertForKeyIssued back profile rules
	// that forbid duplicate subjects or keys.
	IsCertForSubjectIssued(ca pki.NameID, subjectFp int64) (bool, error)
	IsCertForKeyIssued(ca pki.NameID, keyFp int64) (bool, error)

	GetCountOfCerts(ca pki.NameID, onlyRevoked bool) (int64, error)

	// ListCertificates lists certificates filtered by subject pattern
	// ('*' wildcard), validity window and ordering, capped at limit.
	ListCertificates(ca pki.NameID, subjectPattern string, validFrom, validTo time.Time,
		orderBy CertListOrder, limit int) ([]*CertListInfo, error)

	// GetSerialNumbers enumerates serials with id > startID in
	// ascending id order, at most limit rows. notExpiredAt zero means
	// no expiry filter. onlyCACerts and onlyEECerts are mutually
	// exclusive.
	GetSerialNumbers(ca pki.NameID, notExpiredAt time.Time, startID int64, limit int,
		onlyRevoked, onlyCACerts, onlyEECerts bool) ([]SerialWithID, error)

	// GetExpiredSerialNumbers lists serials of certificates expired at
	// the given time.
	GetExpiredSerialNumbers(ca pki.NameID, expiredAt time.Time, limit int) ([]*big.Int, error)

	// GetSuspendedCertSerials lists serials under certificateHold whose
	// last update is older than the given time.
	GetSuspendedCertSerials(ca pki.NameID, lastUpdatedBefore time.Time, limit int) ([]*big.Int, error)
}

// Revocations is the revocation state machine surface.
type Revocations interface {
	// RevokeCert transitions a certificate to revoked. A certificate
	// under certificateHold may be re-revoked with a definitive reason
	// without force, inheriting the hold's times; any other revoked
	// state requires force. If publishToDeltaCache is set the serial is
	// recorded for the next delta CRL.
	RevokeCert(ca pki.NameID, serial *big.Int, rev *pki.RevocationInfo,
		force, publishToDeltaCache bool) (*CertWithRevocationInfo, error)

	// RevokeSuspendedCert replaces a certificateHold revocation with a
	// definitive reason, keeping the hold's revocation and invalidity
	// times.
	RevokeSuspendedCert(ca pki.NameID, serial *big.Int, reason pki.CRLReason,
		publishToDeltaCache bool) (*CertWithRevocationInfo, error)

	// UnrevokeCert releases a revocation, clearing all revocation
	// fields. Without force only a certificateHold may be released.
	UnrevokeCert(ca pki.NameID, serial *big.Int, force, publishToDeltaCache bool) (*CertWithID, error)

	// GetRevokedCerts enumerates revocation entries for base CRL
	// construction.
	GetRevokedCerts(ca pki.NameID, notExpiredAt time.Time, startID int64, limit int,
		onlyCACerts, onlyEECerts bool) ([]*RevInfoWithSerial, error)

	// GetCertsForDeltaCRL resolves delta-CRL cache entries with
	// id > startID against current revocation state.
	GetCertsForDeltaCRL(ca pki.NameID, startID int64, limit int,
		onlyCACerts, onlyEECerts bool) ([]*RevInfoWithSerial, error)
}

// CRLs is the CRL persistence surface.
//
// The delta-CRL cache follows a two-step snapshot/prune protocol: a
// CRL generator must call MaxDeltaCRLCacheID before building a CRL
// and pass that exact value to ClearDeltaCRLCache afterward.
// Reordering the calls can silently drop cache entries added while
// the CRL was being built.
type CRLs interface {
	// AddCRL persists an encoded CRL, extracting number and delta
	// indicator from its extensions, and returns the CRL row id.
	AddCRL(ca pki.NameID, crlDER []byte) (int64, error)

	// GetEncodedCRL returns the DER bytes of the CRL with the given
	// number, or, when crlNumber is nil, of the CRL with the greatest
	// thisUpdate. Returns ErrCRLNotFound if absent.
	GetEncodedCRL(ca pki.NameID, crlNumber *big.Int) ([]byte, error)

	GetMaxCRLNumber(ca pki.NameID) (int64, error)
	GetThisUpdateOfCurrentCRL(ca pki.NameID) (int64, error)
	HasCRL(ca pki.NameID) (bool, error)

	// CleanupCRLs keeps the keep most recent base CRL numbers and
	// deletes every CRL row, base or delta, below the resulting
	// cutoff. Returns the number of base CRLs removed.
	CleanupCRLs(ca pki.NameID, keep int) (int, error)

	// MaxDeltaCRLCacheID snapshots the cache watermark. Call before
	// building the CRL.
	MaxDeltaCRLCacheID(ca pki.NameID) (int64, error)

	// ClearDeltaCRLCache prunes cache rows with id <= uptoID. Pass the
	// value MaxDeltaCRLCacheID returned before the CRL was built.
	ClearDeltaCRLCache(ca pki.NameID, uptoID int64) error
}

// PublishQueue is the per-publisher backlog surface.
type PublishQueue interface {
	AddToPublishQueue(publisher, ca pki.NameID, certID int64) error
	RemoveFromPublishQueue(publisher pki.NameID, certID int64) error

	// GetPublishQueueEntries returns at most limit distinct certificate
	// ids pending for the publisher.
	GetPublishQueueEntries(ca, publisher pki.NameID, limit int) ([]int64, error)

	// ClearPublishQueue drops pending entries. A nil ca or publisher is
	// a wildcard.
	ClearPublishQueue(ca, publisher *pki.NameID) error
}

// Requests is the raw enrollment request surface.
type Requests interface {
	AddRequest(request []byte) (int64, error)
	AddRequestCert(requestID, certID int64) error

	// GetCertRequest returns the raw request bytes a certificate was
	// issued from, or nil if none is linked.
	GetCertRequest(ca pki.NameID, serial *big.Int) ([]byte, error)

	// DeleteUnreferencedRequests purges requests with no surviving
	// certificate link.
	DeleteUnreferencedRequests() error
}

// Users is the RA-user lookup surface. The store only reads these
// records; the management layer maintains them.
type Users interface {
	GetCaHasUser(ca, user pki.NameID) (*CaHasUser, error)
	AuthenticateUser(name string, password []byte) (*pki.NameID, error)
	GetUsername(id int) (string, error)
}

// TryAddCertificate is the boundary wrapper around AddCertificate:
// it reports success as a bool and logs the error instead of
// returning it. Core callers should use AddCertificate directly.
func TryAddCertificate(st Certs, req *AddCertRequest) bool {
	if _, err := st.AddCertificate(req); err != nil {
		subject := ""
		if req != nil && req.Cert != nil {
			subject = req.Cert.Subject.String()
		}
		log.Errorf("could not save certificate %q: %v", subject, err)
		return false
	}
	return true
}
