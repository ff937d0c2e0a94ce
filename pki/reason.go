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

package pki

import (
	"time"

	"github.com/pkg/errors"
)

// CRLReason is an RFC 5280 revocation reason code.
type CRLReason int

const (
	ReasonUnspecified          CRLReason = 0
	ReasonKeyCompromise        CRLReason = 1
	ReasonCACompromise         CRLReason = 2
	ReasonAffiliationChanged   CRLReason = 3
	ReasonSuperseded           CRLReason = 4
	ReasonCessationOfOperation CRLReason = 5
	ReasonCertificateHold      CRLReason = 6
	ReasonRemoveFromCRL        CRLReason = 8
	ReasonPrivilegeWithdrawn   CRLReason = 9
	ReasonAACompromise         CRLReason = 10
)

var reasonNames = map[CRLReason]string{
	ReasonUnspecified:          "unspecified",
	ReasonKeyCompromise:        "keyCompromise",
	ReasonCACompromise:         "cACompromise",
	ReasonAffiliationChanged:   "affiliationChanged",
	ReasonSuperseded:           "superseded",
	ReasonCessationOfOperation: "cessationOfOperation",
	ReasonCertificateHold:      "certificateHold",
	ReasonRemoveFromCRL:        "removeFromCRL",
	ReasonPrivilegeWithdrawn:   "privilegeWithdrawn",
	ReasonAACompromise:         "aACompromise",
}

func (r CRLReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "invalid"
}

// ParseCRLReason validates a numeric reason code.
func ParseCRLReason(code int) (CRLReason, error) {
	r := CRLReason(code)
	if _, ok := reasonNames[r]; !ok {
		return 0, errors.Errorf("invalid CRL reason code %d", code)
	}
	return r, nil
}

// RevocationInfo is the revocation sub-state of a certificate. A nil
// *RevocationInfo means the certificate is active.
//
// A certificate revoked with ReasonCertificateHold is provisional: it
// may be re-revoked with a definitive reason, inheriting the original
// times, or released again.
type RevocationInfo struct {
	Reason         CRLReason
	RevocationTime time.Time
	// InvalidityTime is the claimed time of key compromise or
	// invalidity. The zero value means not specified.
	InvalidityTime time.Time
}

// OnHold reports whether the revocation is the provisional
// certificateHold state.
func (r *RevocationInfo) OnHold() bool {
	return r != nil && r.Reason == ReasonCertificateHold
}
