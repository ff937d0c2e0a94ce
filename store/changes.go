package store

import (
	"fmt"
	"math/big"

	"github.com/paulvi/xipki/pki"
)

// CertChange describes a state transition in the store. Subscribers
// receive changes after the transition has been committed.
type CertChange interface {
	fmt.Stringer
}

// CertAdded is emitted after a certificate has been persisted.
type CertAdded struct {
	CA     pki.NameID
	CertID int64
	Serial *big.Int
}

func (c CertAdded) String() string {
	return fmt.Sprintf("certificate 0x%s added for CA %q (id %d)",
		pki.SerialHex(c.Serial), c.CA.Name, c.CertID)
}

// CertRevoked is emitted after a revocation, including re-revocation
// of a held certificate.
type CertRevoked struct {
	CA     pki.NameID
	Serial *big.Int
	Reason pki.CRLReason
}

func (c CertRevoked) String() string {
	return fmt.Sprintf("certificate 0x%s of CA %q revoked, reason %s",
		pki.SerialHex(c.Serial), c.CA.Name, c.Reason)
}

// CertUnrevoked is emitted after a revocation has been released.
type CertUnrevoked struct {
	CA     pki.NameID
	Serial *big.Int
}

func (c CertUnrevoked) String() string {
	return fmt.Sprintf("certificate 0x%s of CA %q unrevoked",
		pki.SerialHex(c.Serial), c.CA.Name)
}

// CRLAdded is emitted after a CRL has been persisted.
type CRLAdded struct {
	CA        pki.NameID
	CRLNumber *big.Int
	Delta     bool
}

func (c CRLAdded) String() string {
	kind := "CRL"
	if c.Delta {
		kind = "delta CRL"
	}
	return fmt.Sprintf("%s %v added for CA %q", kind, c.CRLNumber, c.CA.Name)
}

// Notifier publishes committed changes to subscribers.
type Notifier interface {
	// Subscribe registers a callback for committed changes.
	Subscribe(func(CertChange) error)

	// Notify invokes all subscribers with the given change.
	Notify(change CertChange) error

	// RenotifyAll asks the storage to replay change notifications for
	// all stored certificates, for rebuilding downstream state.
	RenotifyAll() error
}
