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

package store

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/paulvi/xipki/pki"
)

// AddCertRequest carries everything needed to persist a newly issued
// certificate.
type AddCertRequest struct {
	CA        pki.NameID
	Cert      *x509.Certificate
	Profile   pki.NameID
	Requestor pki.NameID

	// SubjectPublicKey is the encoded SubjectPublicKeyInfo; if nil the
	// certificate's own is used.
	SubjectPublicKey []byte
	// UserID is set when an RA-delegated user requested the
	// certificate.
	UserID      *int
	RequestType pki.RequestType
	// TransactionID correlates multiple certificates issued from one
	// request.
	TransactionID []byte
	// RequestedSubject is the subject as requested, when it differs
	// from the issued subject.
	RequestedSubject *pkix.Name
}

// CertWithID is a decoded stored certificate together with its row id.
type CertWithID struct {
	CertID int64
	Cert   *x509.Certificate
	DER    []byte
}

// CertWithRevocationInfo is the store's answer to a point lookup by
// CA and serial.
type CertWithRevocationInfo struct {
	CertWithID
	ProfileID  int
	Revocation *pki.RevocationInfo
}

// SerialWithID is one row of a cursor-paginated serial enumeration.
type SerialWithID struct {
	ID     int64
	Serial *big.Int
}

// CertListInfo is one row of a certificate listing.
type CertListInfo struct {
	Serial    *big.Int
	Subject   string
	NotBefore time.Time
	NotAfter  time.Time
}

// CertListOrder selects the ordering of ListCertificates results.
type CertListOrder int

const (
	OrderNone CertListOrder = iota
	OrderNotBefore
	OrderNotBeforeDesc
	OrderNotAfter
	OrderNotAfterDesc
	OrderSubject
	OrderSubjectDesc
)

// RevInfoWithSerial is one revocation entry for CRL construction.
// For delta-CRL construction an entry released from hold is reported
// with reason removeFromCRL and the release time as revocation time.
type RevInfoWithSerial struct {
	CertID         int64
	Serial         *big.Int
	Reason         pki.CRLReason
	RevocationTime time.Time
	InvalidityTime time.Time
}

// KnownCert is the answer to KnowsCertForSerial.
type KnownCert struct {
	Known bool
	// UserID is the requesting RA user, when one was recorded.
	UserID *int
}

// CaHasUser is an RA-delegated user's rights on one CA.
type CaHasUser struct {
	User       pki.NameID
	Permission int
	Profiles   []string
}
