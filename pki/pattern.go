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
	"strings"

	"github.com/pkg/errors"
)

// SubjectLikePattern translates a caller-supplied subject pattern into
// a SQL LIKE pattern: '*' maps to '%'. The SQL wildcard itself is
// reserved; patterns that already contain '%' are rejected so a caller
// cannot smuggle unintended wildcards past the translation.
func SubjectLikePattern(pattern string) (string, error) {
	if strings.ContainsRune(pattern, '%') {
		return "", errors.New("the character '%' is not allowed in a subject pattern")
	}
	return strings.ReplaceAll(pattern, "*", "%"), nil
}
