package types

// Signer is the capability to authorise an operation on behalf of an
// address. Human signers are produced by the host from an authenticated
// request; derived signers (authority, auction, bid) are only minted by the
// engine that owns the derivation scheme.
type Signer struct {
	addr Address
}

// NewSigner wraps an authenticated address in a signing capability.
func NewSigner(addr Address) Signer { return Signer{addr: addr} }

// Address returns the identity the signer speaks for.
func (s Signer) Address() Address { return s.addr }

// Signs reports whether the capability authorises the supplied address.
func (s Signer) Signs(addr Address) bool {
	return !s.addr.IsZero() && s.addr == addr
}
