package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"

	"vaultauction/core/types"
)

// AddressPrefix defines the human-readable part of an encoded address.
type AddressPrefix string

const (
	// AccountPrefix is used for participant and token account addresses.
	AccountPrefix AddressPrefix = "va"
)

// EncodeAddress renders the address as bech32 with the supplied prefix.
func EncodeAddress(prefix AddressPrefix, addr types.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(string(prefix), conv)
}

// MustEncodeAddress is EncodeAddress for callers holding a well-formed
// address; bech32 conversion of 32 bytes cannot fail.
func MustEncodeAddress(prefix AddressPrefix, addr types.Address) string {
	encoded, err := EncodeAddress(prefix, addr)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses a bech32 address and returns its prefix and bytes.
func DecodeAddress(addrStr string) (AddressPrefix, types.Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return "", types.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return "", types.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != types.AddressLength {
		return "", types.Address{}, fmt.Errorf("address must be %d bytes, got %d", types.AddressLength, len(conv))
	}
	return AddressPrefix(prefix), types.BytesToAddress(conv), nil
}

// ParseAddress accepts either a bech32 or a 0x-hex address.
func ParseAddress(s string) (types.Address, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return types.HexToAddress(s)
	}
	_, addr, err := DecodeAddress(s)
	return addr, err
}
