package store

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCodes(t *testing.T) {
	err := Errorf(CertAlreadyRevoked, "serial 0x%x", 42)
	assert.Equal(t, CertAlreadyRevoked, CodeOf(err))
	assert.True(t, HasCode(err, CertAlreadyRevoked))
	assert.False(t, HasCode(err, NotPermitted))
	assert.Contains(t, err.Error(), "serial 0x2a")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapErr(DatabaseFailure, cause, "could not query certs")
	assert.Equal(t, DatabaseFailure, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "could not query certs")
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, ErrCode(0), CodeOf(errors.New("boom")))
	assert.False(t, HasCode(nil, DatabaseFailure))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrCertNotFound))
	assert.True(t, IsNotFound(ErrCRLNotFound))
	assert.False(t, IsNotFound(errors.New("boom")))
}
