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
	"errors"
	"fmt"
)

// ErrCertNotFound is returned by lookups and state transitions when no
// certificate with the given CA and serial exists.
var ErrCertNotFound = errors.New("certificate not found")

// ErrCRLNotFound is returned when no CRL matches the request.
var ErrCRLNotFound = errors.New("CRL not found")

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCertNotFound) || errors.Is(err, ErrCRLNotFound)
}

// ErrCode classifies store failures. Protocol front ends map these to
// their fault codes; no raw backend error ever escapes the store.
type ErrCode int

const (
	// DatabaseFailure is a connection, pool or SQL execution failure.
	DatabaseFailure ErrCode = iota + 1
	// SystemFailure is an internal invariant violation: an unexpected
	// affected-row count, or malformed stored certificate bytes.
	SystemFailure
	// CertAlreadyRevoked rejects a revocation of a certificate already
	// revoked with a conflicting definitive reason.
	CertAlreadyRevoked
	// CertNotRevoked rejects an operation requiring a revoked
	// certificate.
	CertNotRevoked
	// NotPermitted rejects a state transition the rules forbid without
	// an explicit force override.
	NotPermitted
	// BadRequest rejects malformed caller input.
	BadRequest
)

func (c ErrCode) String() string {
	switch c {
	case DatabaseFailure:
		return "database failure"
	case SystemFailure:
		return "system failure"
	case CertAlreadyRevoked:
		return "certificate already revoked"
	case CertNotRevoked:
		return "certificate not revoked"
	case NotPermitted:
		return "operation not permitted"
	case BadRequest:
		return "bad request"
	}
	return fmt.Sprintf("error code %d", int(c))
}

// Error is a classified store failure with the original cause
// attached.
type Error struct {
	Code    ErrCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Errorf builds a classified error with a formatted message.
func Errorf(code ErrCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapErr classifies an underlying error, keeping it as the cause.
func WrapErr(code ErrCode, cause error, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the classification of err, or 0 if err is not a
// store error.
func CodeOf(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// HasCode reports whether err carries the given classification.
func HasCode(err error, code ErrCode) bool {
	return CodeOf(err) == code
}
