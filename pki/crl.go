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
	"crypto/x509"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

var oidDeltaCRLIndicator = asn1.ObjectIdentifier{2, 5, 29, 27}

// CRLInfo is the metadata the store extracts from an encoded CRL
// before persisting it.
type CRLInfo struct {
	// Number is the CRL number extension value, nil if absent.
	Number *big.Int
	// BaseNumber is the delta CRL indicator extension value: the
	// number of the base CRL this delta refers to. nil for a base CRL.
	BaseNumber *big.Int
	ThisUpdate time.Time
	// NextUpdate is zero if the CRL has no nextUpdate field.
	NextUpdate time.Time
}

// IsDelta reports whether the CRL is a delta CRL.
func (ci *CRLInfo) IsDelta() bool {
	return ci.BaseNumber != nil
}

// ParseCRL extracts the store-relevant metadata from a DER-encoded
// CRL.
func ParseCRL(der []byte) (*CRLInfo, error) {
	rl, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse CRL")
	}

	info := &CRLInfo{
		Number:     rl.Number,
		ThisUpdate: rl.ThisUpdate,
		NextUpdate: rl.NextUpdate,
	}
	for _, ext := range rl.Extensions {
		if !ext.Id.Equal(oidDeltaCRLIndicator) {
			continue
		}
		var base *big.Int
		if _, err := asn1.Unmarshal(ext.Value, &base); err != nil {
			return nil, errors.Wrap(err, "malformed delta CRL indicator")
		}
		info.BaseNumber = base
	}
	return info, nil
}
