package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the width of every identity handled by the protocol:
// human participants, mints, token accounts and derived records alike.
const AddressLength = 32

// Address identifies an entity stored in state.
type Address [AddressLength]byte

// ZeroAddress is the unset address.
var ZeroAddress Address

// BytesToAddress copies b into an address, left padding short inputs.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// HexToAddress parses a 0x-prefixed (or bare) hexadecimal address.
func HexToAddress(s string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(raw))
	}
	return BytesToAddress(raw), nil
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the 0x-prefixed hexadecimal form.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }
