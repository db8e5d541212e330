// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pda derives the program-controlled addresses used by the faucet.
//
// A derived address is a hash of a label and the program identity pushed
// off the ed25519 curve by a one-byte bump, so no private key exists for
// it.  The derivation is pure: every caller that passes the same label and
// program recomputes the same address and bump.
package pda

import (
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"
)

const (
	// AuthoritySeed is the label the mint authority is derived from.
	AuthoritySeed = "faucet"

	// MintSeed is the label the faucet mint address is derived from.
	MintSeed = "faucet_mint"
)

var (
	// ErrNoViableBump is returned when no bump in [0, 255] moves the
	// derived address off the curve.  It indicates a misconfigured
	// program identity and is not recoverable.
	ErrNoViableBump = errors.New("unable to find a viable program address bump")

	// ErrInvalidAddress is returned when a string does not decode to a
	// 32 byte address.
	ErrInvalidAddress = errors.New("invalid address")
)

// Derived is an address found by FindProgramAddress along with the bump
// that produced it.
type Derived struct {
	Address common.PublicKey
	Bump    uint8
}

// String returns the base58 address and bump.
func (d Derived) String() string {
	return fmt.Sprintf("%s (bump %d)", d.Address.ToBase58(), d.Bump)
}

// Find derives the canonical address for label under program.  The highest
// bump that yields an off-curve address is used.
func Find(label string, program common.PublicKey) (Derived, error) {
	addr, bump, err := common.FindProgramAddress(
		[][]byte{[]byte(label)}, program,
	)
	if err != nil {
		return Derived{}, fmt.Errorf("%w: label %q: %v", ErrNoViableBump,
			label, err)
	}
	return Derived{Address: addr, Bump: bump}, nil
}

// Create recomputes the address for label under program from a known bump.
// An error is returned if the bump places the address on the curve.
func Create(label string, bump uint8, program common.PublicKey) (
	common.PublicKey, error) {

	return common.CreateProgramAddress(
		[][]byte{[]byte(label), {bump}}, program,
	)
}

// FindAuthority derives the faucet's mint authority.
func FindAuthority(program common.PublicKey) (Derived, error) {
	return Find(AuthoritySeed, program)
}

// CreateAuthority recomputes the mint authority from the bump stored at
// initialization.
func CreateAuthority(program common.PublicKey, bump uint8) (
	common.PublicKey, error) {

	return Create(AuthoritySeed, bump, program)
}

// FindMint derives the faucet mint address.
func FindMint(program common.PublicKey) (Derived, error) {
	return Find(MintSeed, program)
}

// FindHoldingAddress returns the associated holding account address for
// owner and mint.
func FindHoldingAddress(owner, mint common.PublicKey) (common.PublicKey,
	error) {

	addr, _, err := common.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("%w: holding account for "+
			"%s: %v", ErrNoViableBump, owner.ToBase58(), err)
	}
	return addr, nil
}

// IsDerived reports whether addr lies off the ed25519 curve and therefore
// cannot have a private key.
func IsDerived(addr common.PublicKey) bool {
	return !common.IsOnCurve(addr)
}

// ParseAddress decodes a base58 address.  Unlike
// common.PublicKeyFromString, malformed input is an error.
func ParseAddress(s string) (common.PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("%w %q: %v",
			ErrInvalidAddress, s, err)
	}
	if len(b) != common.PublicKeyLength {
		return common.PublicKey{}, fmt.Errorf("%w %q: got %d bytes, "+
			"want %d", ErrInvalidAddress, s, len(b),
			common.PublicKeyLength)
	}
	return common.PublicKeyFromBytes(b), nil
}
