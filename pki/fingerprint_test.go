package pki

import (
	"crypto/x509/pkix"

	gc "gopkg.in/check.v1"
)

type FingerprintSuite struct{}

var _ = gc.Suite(&FingerprintSuite{})

func (s *FingerprintSuite) TestCanonicalName(c *gc.C) {
	a := pkix.Name{CommonName: "Example  Server", Organization: []string{"ACME Corp"}}
	b := pkix.Name{CommonName: "example server", Organization: []string{"acme corp"}}
	c.Check(CanonicalName(a), gc.Equals, CanonicalName(b))
	c.Check(FpSubject(a), gc.Equals, FpSubject(b))
}

func (s *FingerprintSuite) TestCanonicalNameOrder(c *gc.C) {
	a := pkix.Name{CommonName: "a", Organization: []string{"x"}}
	b := pkix.Name{CommonName: "b", Organization: []string{"x"}}
	c.Check(CanonicalName(a), gc.Not(gc.Equals), CanonicalName(b))
	c.Check(FpSubject(a), gc.Not(gc.Equals), FpSubject(b))
}

func (s *FingerprintSuite) TestFpKeyStable(c *gc.C) {
	spki := []byte{0x30, 0x82, 0x01, 0x22, 0x30, 0x0d}
	c.Check(FpKey(spki), gc.Equals, FpKey(append([]byte(nil), spki...)))
	c.Check(FpKey(spki), gc.Not(gc.Equals), FpKey(spki[1:]))
}

func (s *FingerprintSuite) TestBase64Fp(c *gc.C) {
	// SHA-1 of the empty string.
	c.Check(Base64Fp(nil), gc.Equals, "2jmj7l5rSw0yVb/vlWAYkK/YBwk=")
}

func (s *FingerprintSuite) TestCutText(c *gc.C) {
	c.Check(CutText("short", 10), gc.Equals, "short")
	c.Check(CutText("exactly-10", 10), gc.Equals, "exactly-10")
	c.Check(CutText("0123456789a", 10), gc.Equals, "0123456...")
	c.Check(CutText("abcdef", 3), gc.Equals, "abc")
	// A cut landing inside a multi-byte rune backs off to the rune
	// boundary.
	c.Check(CutText("héllo wörld", 5), gc.Equals, "h...")
	c.Check(CutText("日本語の件名", 8), gc.Equals, "日...")
	c.Check(CutText("日本語", 3), gc.Equals, "日")
}

type PatternSuite struct{}

var _ = gc.Suite(&PatternSuite{})

func (s *PatternSuite) TestWildcard(c *gc.C) {
	p, err := SubjectLikePattern("cn=server-*")
	c.Assert(err, gc.IsNil)
	c.Check(p, gc.Equals, "cn=server-%")
}

func (s *PatternSuite) TestRejectPercent(c *gc.C) {
	_, err := SubjectLikePattern("cn=100%")
	c.Check(err, gc.NotNil)
}
