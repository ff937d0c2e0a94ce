package pgstore

import (
	"database/sql"
	"encoding/base64"
	"math/big"
	"time"

	"github.com/paulvi/xipki/pki"
	"github.com/paulvi/xipki/store"
)

func (st *storage) AddRequest(request []byte) (int64, error) {
	if len(request) == 0 {
		return 0, store.Errorf(store.BadRequest, "no request to add")
	}
	id, err := st.idgen.NextID()
	if err != nil {
		return 0, store.WrapErr(store.SystemFailure, err, "could not allocate request id")
	}
	_, err = st.Exec(renumberPlaceholders(
		`INSERT INTO request (id, lupdate, data) VALUES (?, ?, ?)`),
		id, epoch(time.Now()), base64.StdEncoding.EncodeToString(request))
	if err != nil {
		return 0, wrapDB(err, "could not insert request")
	}
	return id, nil
}

func (st *storage) AddRequestCert(requestID, certID int64) error {
	id, err := st.idgen.NextID()
	if err != nil {
		return store.WrapErr(store.SystemFailure, err, "could not allocate link id")
	}
	_, err = st.Exec(renumberPlaceholders(
		`INSERT INTO reqcert (id, rid, cid) VALUES (?, ?, ?)`), id, requestID, certID)
	if err != nil {
		return wrapDB(err, "could not link request %d to certificate %d", requestID, certID)
	}
	return nil
}

func (st *storage) GetCertRequest(ca pki.NameID, serial *big.Int) ([]byte, error) {
	var dataB64 string
	err := st.QueryRow(st.sqls.fetchFirst(
		`SELECT q.data FROM request q
JOIN reqcert l ON l.rid = q.id
JOIN cert c ON c.id = l.cid
WHERE c.ca_id = ? AND c.sn = ?`, 1),
		ca.ID, pki.SerialHex(serial)).Scan(&dataB64)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, wrapDB(err, "could not query request of certificate 0x%s", pki.SerialHex(serial))
	}
	data, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return nil, store.WrapErr(store.SystemFailure, err, "corrupt encoded request")
	}
	return data, nil
}

func (st *storage) DeleteUnreferencedRequests() error {
	_, err := st.Exec(
		`DELETE FROM request WHERE NOT EXISTS (SELECT 1 FROM reqcert WHERE reqcert.rid = request.id)`)
	if err != nil {
		return wrapDB(err, "could not delete unreferenced requests")
	}
	return nil
}
