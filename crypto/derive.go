package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"vaultauction/core/types"
)

// Derive computes the deterministic identity of a program-owned record. The
// identity is keccak256(program || tag || components...), so the same inputs
// always resolve to the same record and different programs never collide.
func Derive(program types.Address, tag string, components ...types.Address) types.Address {
	parts := make([][]byte, 0, len(components)+2)
	parts = append(parts, program[:], []byte(tag))
	for i := range components {
		parts = append(parts, components[i][:])
	}
	return types.BytesToAddress(ethcrypto.Keccak256(parts...))
}

// DeriveIndexed is Derive with a trailing big-endian counter, used for
// records created in sequence under one parent.
func DeriveIndexed(program types.Address, tag string, parent types.Address, index uint64) types.Address {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(index >> (8 * i))
	}
	return types.BytesToAddress(ethcrypto.Keccak256(program[:], []byte(tag), parent[:], buf[:]))
}
