// Package testing provides certificate and CRL factories for store
// tests.
package testing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"
)

var (
	oidDeltaCRLIndicator        = asn1.ObjectIdentifier{2, 5, 29, 27}
	oidSignatureECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
)

// CA is a throwaway issuing authority.
type CA struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// MustNewCA creates a self-signed CA. It panics on failure; test
// fixtures have nowhere sensible to put an error.
func MustNewCA(name string) *CA {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		panic(err)
	}
	return &CA{Cert: cert, Key: key}
}

// CertOption adjusts an issued certificate template.
type CertOption func(*x509.Certificate)

func NotBefore(t time.Time) CertOption {
	return func(tmpl *x509.Certificate) { tmpl.NotBefore = t }
}

func NotAfter(t time.Time) CertOption {
	return func(tmpl *x509.Certificate) { tmpl.NotAfter = t }
}

func AsCA() CertOption {
	return func(tmpl *x509.Certificate) {
		tmpl.IsCA = true
		tmpl.BasicConstraintsValid = true
		tmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	}
}

// MustIssueCert issues an end-entity certificate with the given serial
// unless AsCA overrides it.
func (ca *CA) MustIssueCert(serial int64, commonName string, opts ...CertOption) *x509.Certificate {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * 90 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	for _, opt := range opts {
		opt(tmpl)
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		panic(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		panic(err)
	}
	return cert
}

// MustIssueCRL signs a CRL with the given number. A non-nil baseNumber
// makes it a delta CRL referencing that base.
func (ca *CA) MustIssueCRL(number int64, baseNumber *big.Int,
	thisUpdate, nextUpdate time.Time, revoked []x509.RevocationListEntry) []byte {

	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(number),
		ThisUpdate:                thisUpdate,
		NextUpdate:                nextUpdate,
		RevokedCertificateEntries: revoked,
	}
	if baseNumber != nil {
		base, err := asn1.Marshal(baseNumber)
		if err != nil {
			panic(fmt.Sprintf("marshal delta CRL indicator: %v", err))
		}
		tmpl.ExtraExtensions = append(tmpl.ExtraExtensions, pkix.Extension{
			Id:       oidDeltaCRLIndicator,
			Critical: true,
			Value:    base,
		})
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, ca.Cert, ca.Key)
	if err != nil {
		panic(err)
	}
	return der
}

// MustIssueCRLWithoutNumber signs a CRL that carries no cRLNumber
// extension at all. x509.CreateRevocationList insists on a number, so
// the structure is assembled by hand.
func (ca *CA) MustIssueCRLWithoutNumber(thisUpdate, nextUpdate time.Time) []byte {
	alg := pkix.AlgorithmIdentifier{Algorithm: oidSignatureECDSAWithSHA256}
	tbs := pkix.TBSCertificateList{
		Version:    1,
		Signature:  alg,
		Issuer:     ca.Cert.Subject.ToRDNSequence(),
		ThisUpdate: thisUpdate.UTC(),
		NextUpdate: nextUpdate.UTC(),
	}
	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		panic(err)
	}
	digest := sha256.Sum256(tbsDER)
	sig, err := ecdsa.SignASN1(rand.Reader, ca.Key, digest[:])
	if err != nil {
		panic(err)
	}
	der, err := asn1.Marshal(pkix.CertificateList{
		TBSCertList:        tbs,
		SignatureAlgorithm: alg,
		SignatureValue:     asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	})
	if err != nil {
		panic(err)
	}
	return der
}
