package pki

import (
	"math/big"
	"time"

	gc "gopkg.in/check.v1"

	xtesting "github.com/paulvi/xipki/testing"
)

type CRLSuite struct {
	ca *xtesting.CA
}

var _ = gc.Suite(&CRLSuite{})

func (s *CRLSuite) SetUpSuite(c *gc.C) {
	s.ca = xtesting.MustNewCA("crl test ca")
}

func (s *CRLSuite) TestParseBase(c *gc.C) {
	thisUpdate := time.Now().Truncate(time.Second)
	nextUpdate := thisUpdate.Add(24 * time.Hour)
	der := s.ca.MustIssueCRL(7, nil, thisUpdate, nextUpdate, nil)

	info, err := ParseCRL(der)
	c.Assert(err, gc.IsNil)
	c.Check(info.Number.Int64(), gc.Equals, int64(7))
	c.Check(info.IsDelta(), gc.Equals, false)
	c.Check(info.BaseNumber, gc.IsNil)
	c.Check(info.ThisUpdate.Unix(), gc.Equals, thisUpdate.Unix())
	c.Check(info.NextUpdate.Unix(), gc.Equals, nextUpdate.Unix())
}

func (s *CRLSuite) TestParseDelta(c *gc.C) {
	now := time.Now()
	der := s.ca.MustIssueCRL(9, big.NewInt(7), now, now.Add(time.Hour), nil)

	info, err := ParseCRL(der)
	c.Assert(err, gc.IsNil)
	c.Check(info.Number.Int64(), gc.Equals, int64(9))
	c.Check(info.IsDelta(), gc.Equals, true)
	c.Check(info.BaseNumber.Int64(), gc.Equals, int64(7))
}

func (s *CRLSuite) TestParseWithoutNumber(c *gc.C) {
	thisUpdate := time.Now().Truncate(time.Second)
	der := s.ca.MustIssueCRLWithoutNumber(thisUpdate, thisUpdate.Add(time.Hour))

	info, err := ParseCRL(der)
	c.Assert(err, gc.IsNil)
	c.Check(info.Number, gc.IsNil)
	c.Check(info.IsDelta(), gc.Equals, false)
	c.Check(info.ThisUpdate.Unix(), gc.Equals, thisUpdate.Unix())
}

func (s *CRLSuite) TestParseGarbage(c *gc.C) {
	_, err := ParseCRL([]byte("not a crl"))
	c.Check(err, gc.NotNil)
}
