package pki

import (
	gc "gopkg.in/check.v1"
)

type PasswordSuite struct{}

var _ = gc.Suite(&PasswordSuite{})

func (s *PasswordSuite) TestRoundTrip(c *gc.C) {
	stored := HashPassword([]byte("correct horse"), []byte("pepper"), 1000)

	ok, err := ValidatePassword([]byte("correct horse"), stored)
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, true)

	ok, err = ValidatePassword([]byte("incorrect horse"), stored)
	c.Assert(err, gc.IsNil)
	c.Check(ok, gc.Equals, false)
}

func (s *PasswordSuite) TestMalformed(c *gc.C) {
	for _, stored := range []string{
		"",
		"1000:abcd",
		"zero:abcd:ef01",
		"0:abcd:ef01",
		"1000:xyz:ef01",
		"1000:abcd:xyz",
	} {
		_, err := ValidatePassword([]byte("pw"), stored)
		c.Check(err, gc.NotNil, gc.Commentf("stored=%q", stored))
	}
}
