package types

import "testing"

func TestHexRoundTrip(t *testing.T) {
	var addr Address
	for i := range addr {
		addr[i] = byte(i)
	}
	parsed, err := HexToAddress(addr.Hex())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != addr {
		t.Fatalf("expected %s, got %s", addr, parsed)
	}
	if _, err := HexToAddress("0x1234"); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestSignerSigns(t *testing.T) {
	addr := BytesToAddress([]byte{0x01})
	signer := NewSigner(addr)
	if !signer.Signs(addr) {
		t.Fatalf("signer should authorise its own address")
	}
	if signer.Signs(BytesToAddress([]byte{0x02})) {
		t.Fatalf("signer must not authorise foreign address")
	}
	if (Signer{}).Signs(ZeroAddress) {
		t.Fatalf("empty signer must not authorise the zero address")
	}
}
