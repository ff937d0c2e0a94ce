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
	"crypto/sha1"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

// Fingerprints are 64-bit values used for indexed equality lookups
// (duplicate-subject and duplicate-key profile rules) without
// comparing full values: the first 8 bytes of a SHA-1 digest,
// interpreted big-endian.

func fp64(data []byte) int64 {
	sum := sha1.Sum(data)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// FpSubject returns the fingerprint of the canonical form of a
// distinguished name.
func FpSubject(name pkix.Name) int64 {
	return fp64([]byte(CanonicalName(name)))
}

// FpKey returns the fingerprint of an encoded SubjectPublicKeyInfo.
func FpKey(spki []byte) int64 {
	return fp64(spki)
}

// Base64Fp returns the base64 SHA-1 digest of data, used for
// content-addressing stored certificate bytes.
func Base64Fp(data []byte) string {
	sum := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// CanonicalName normalizes a distinguished name so that encoding
// variations (case, insignificant whitespace) of the same name map to
// the same fingerprint.
func CanonicalName(name pkix.Name) string {
	var parts []string
	for _, rdn := range name.ToRDNSequence() {
		for _, atv := range rdn {
			value, _ := atv.Value.(string)
			value = strings.Join(strings.Fields(value), " ")
			parts = append(parts, atv.Type.String()+"="+strings.ToLower(value))
		}
	}
	return strings.Join(parts, ",")
}

// CutText truncates s to at most max bytes, appending "..." when
// truncated, for storage in bounded subject columns. The cut never
// splits a multi-byte rune.
func CutText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	ellipsis := "..."
	if max <= len(ellipsis) {
		ellipsis = ""
	}
	end := max - len(ellipsis)
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + ellipsis
}
