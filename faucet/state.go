// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package faucet

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"
)

const (
	// discriminatorSize is the length of the account type tag that
	// prefixes every state record.
	discriminatorSize = 8

	// StateSize is the encoded length of a state record: the type tag,
	// the initialized flag, the mint address and the authority bump.
	StateSize = discriminatorSize + 1 + common.PublicKeyLength + 1
)

// stateDiscriminator tags state accounts so that data written by other
// account types can never be read back as faucet state.
var stateDiscriminator = accountDiscriminator("State")

// accountDiscriminator returns the first eight bytes of
// sha256("account:<name>").
func accountDiscriminator(name string) [discriminatorSize]byte {
	var d [discriminatorSize]byte
	h := sha256.Sum256([]byte("account:" + name))
	copy(d[:], h[:discriminatorSize])
	return d
}

// State is the persistent record of an initialized faucet.  It is written
// once by Initialize and never modified.
type State struct {
	// IsInitialized is set when the record is created and never
	// cleared.
	IsInitialized bool

	// Mint is the address of the faucet mint.
	Mint common.PublicKey

	// Bump is the derivation bump of the faucet authority.
	Bump uint8
}

// serialize encodes the state record with its type tag.
func (s *State) serialize() ([]byte, error) {
	body, err := borsh.Serialize(*s)
	if err != nil {
		return nil, faucetError(ErrData, "failed to serialize state", err)
	}

	v := make([]byte, 0, StateSize)
	v = append(v, stateDiscriminator[:]...)
	v = append(v, body...)
	if len(v) != StateSize {
		str := fmt.Sprintf("state: encoded %d bytes, want %d", len(v),
			StateSize)
		return nil, faucetError(ErrData, str, nil)
	}
	return v, nil
}

// deserializeState decodes a state record written by serialize.
func deserializeState(v []byte) (*State, error) {
	if len(v) != StateSize {
		str := fmt.Sprintf("state: got %d bytes, want %d", len(v),
			StateSize)
		return nil, faucetError(ErrData, str, nil)
	}
	if !bytes.Equal(v[:discriminatorSize], stateDiscriminator[:]) {
		str := "state: account type tag mismatch"
		return nil, faucetError(ErrData, str, nil)
	}

	var s State
	if err := borsh.Deserialize(&s, v[discriminatorSize:]); err != nil {
		return nil, faucetError(ErrData, "state: malformed record", err)
	}
	return &s, nil
}
