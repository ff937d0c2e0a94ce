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

// Package pki holds the domain types shared between the certificate
// store and its callers: CA/profile/requestor identities, revocation
// state, fingerprints and the few pieces of X.509 decoding the store
// needs.
package pki

import (
	"crypto/x509"
	"math/big"
)

// NameID identifies a named entity (CA, certificate profile,
// requestor, publisher, user) by its numeric id. The name is carried
// for logging; only the id is persisted.
type NameID struct {
	ID   int
	Name string
}

// RequestType records which protocol front end submitted an
// enrollment request.
type RequestType int

const (
	RequestTypeCA   RequestType = 1
	RequestTypeCMP  RequestType = 2
	RequestTypeSCEP RequestType = 3
	RequestTypeREST RequestType = 4
)

// CertStatus is the answer to a point status query keyed by subject.
type CertStatus int

const (
	StatusUnknown CertStatus = iota
	StatusGood
	StatusRevoked
)

func (s CertStatus) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusRevoked:
		return "revoked"
	}
	return "unknown"
}

// SerialHex renders a certificate serial the way it is stored: plain
// lowercase hex with no leading zero padding.
func SerialHex(serial *big.Int) string {
	return serial.Text(16)
}

// IsEndEntity reports whether cert is an end-entity certificate, i.e.
// not a CA certificate. A certificate without basic constraints is an
// end-entity certificate.
func IsEndEntity(cert *x509.Certificate) bool {
	return !cert.IsCA
}
