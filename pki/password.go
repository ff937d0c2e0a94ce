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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// Stored password hashes for RA-delegated users use the format
// "iterations:salt:hash" with salt and hash hex encoded. The hash is
// PBKDF2-HMAC-SHA256 of the password with the given salt and
// iteration count.

// ValidatePassword checks a cleartext password against a stored hash.
// Malformed stored hashes are an error, not a mismatch.
func ValidatePassword(password []byte, stored string) (bool, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 {
		return false, errors.Errorf("malformed password hash: %d fields", len(parts))
	}
	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations < 1 {
		return false, errors.Errorf("malformed password hash iteration count %q", parts[0])
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, errors.Wrap(err, "malformed password hash salt")
	}
	want, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, errors.Wrap(err, "malformed password hash")
	}
	got := pbkdf2.Key(password, salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// HashPassword produces a stored hash in the format ValidatePassword
// accepts. Exposed for the management layer and tests.
func HashPassword(password, salt []byte, iterations int) string {
	hash := pbkdf2.Key(password, salt, iterations, 32, sha256.New)
	return strconv.Itoa(iterations) + ":" + hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash)
}
