package pgstore

import (
	"database/sql"
	"strings"

	"github.com/paulvi/xipki/pki"
	"github.com/paulvi/xipki/store"
)

func (st *storage) AuthenticateUser(name string, password []byte) (*pki.NameID, error) {
	var id int
	var storedHash string
	err := st.QueryRow(renumberPlaceholders(
		`SELECT id, password FROM tuser WHERE name = ? AND active = 1`),
		name).Scan(&id, &storedHash)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, wrapDB(err, "could not query user %q", name)
	}
	if strings.TrimSpace(storedHash) == "" {
		return nil, nil
	}

	valid, err := pki.ValidatePassword(password, storedHash)
	if err != nil {
		return nil, store.WrapErr(store.SystemFailure, err, "corrupt password hash")
	}
	if !valid {
		return nil, nil
	}
	return &pki.NameID{ID: id, Name: name}, nil
}

func (st *storage) GetUsername(id int) (string, error) {
	var name string
	err := st.QueryRow(renumberPlaceholders(
		`SELECT name FROM tuser WHERE id = ? AND active = 1`), id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	} else if err != nil {
		return "", wrapDB(err, "could not query user %d", id)
	}
	return name, nil
}

func (st *storage) GetCaHasUser(ca, user pki.NameID) (*store.CaHasUser, error) {
	var permission int
	var profiles sql.NullString
	err := st.QueryRow(renumberPlaceholders(
		`SELECT permission, profiles FROM ca_has_user WHERE ca_id = ? AND user_id = ?`),
		ca.ID, user.ID).Scan(&permission, &profiles)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, wrapDB(err, "could not query rights of user %d on CA %d", user.ID, ca.ID)
	}

	entry := &store.CaHasUser{User: user, Permission: permission}
	if profiles.Valid && profiles.String != "" {
		for _, profile := range strings.Split(profiles.String, ",") {
			profile = strings.TrimSpace(profile)
			if profile != "" {
				entry.Profiles = append(entry.Profiles, profile)
			}
		}
	}
	return entry, nil
}
