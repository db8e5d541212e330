// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package faucet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/stretchr/testify/require"
	"github.com/tokenfaucet/tokenfaucet/pda"
	"github.com/tokenfaucet/tokenfaucet/tokenstore"
)

// TestStateEncoding checks the layout of an encoded state record and that
// foreign data is rejected.
func TestStateEncoding(t *testing.T) {
	t.Parallel()

	mint := types.NewAccount().PublicKey
	s := &State{IsInitialized: true, Mint: mint, Bump: 254}

	v, err := s.serialize()
	require.NoError(t, err)
	require.Len(t, v, StateSize)
	require.Equal(t, stateDiscriminator[:], v[:discriminatorSize])
	require.Equal(t, byte(1), v[discriminatorSize])
	require.Equal(t, mint.Bytes(), v[discriminatorSize+1:StateSize-1])
	require.Equal(t, byte(254), v[StateSize-1])

	got, err := deserializeState(v)
	require.NoError(t, err)
	require.Equal(t, s, got)

	_, err = deserializeState(v[:StateSize-1])
	require.True(t, IsError(err, ErrData))

	tampered := append([]byte(nil), v...)
	tampered[0] ^= 0xff
	_, err = deserializeState(tampered)
	require.True(t, IsError(err, ErrData))
}

// TestDispenseWrongBump writes state records carrying a bump other than the
// authority's and ensures dispensing through them is refused.
func TestDispenseWrongBump(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	db, err := walletdb.Create("bdb", dbPath, true, 10*time.Second, false)
	require.NoError(t, err)
	defer db.Close()

	program := types.NewAccount().PublicKey
	p, err := New(db, program)
	require.NoError(t, err)

	payer := types.NewAccount().PublicKey
	owner := types.NewAccount().PublicKey
	var recipient common.PublicKey
	err = p.update(func(ns, _ walletdb.ReadWriteBucket) error {
		return p.store.Airdrop(ns, payer, 10_000_000_000)
	})
	require.NoError(t, err)

	_, err = p.Initialize(&InitializeRequest{
		Payer: payer,
		State: types.NewAccount().PublicKey,
	})
	require.NoError(t, err)

	err = p.update(func(ns, _ walletdb.ReadWriteBucket) error {
		var err error
		recipient, err = p.store.CreateHoldingAccount(
			ns, payer, owner, p.mint.Address,
		)
		return err
	})
	require.NoError(t, err)

	// Pick one bump deriving a valid but different address and one that
	// lands on the curve.
	var offCurve, onCurve *uint8
	for b := int(p.authority.Bump) - 1; b >= 0; b-- {
		bump := uint8(b)
		_, err := pda.CreateAuthority(program, bump)
		switch {
		case err == nil && offCurve == nil:
			offCurve = &bump
		case err != nil && onCurve == nil:
			onCurve = &bump
		}
		if offCurve != nil && onCurve != nil {
			break
		}
	}
	require.NotNil(t, offCurve)
	require.NotNil(t, onCurve)

	for _, bump := range []uint8{*offCurve, *onCurve} {
		forged := &State{
			IsInitialized: true,
			Mint:          p.mint.Address,
			Bump:          bump,
		}
		data, err := forged.serialize()
		require.NoError(t, err)

		stateAddr := types.NewAccount().PublicKey
		err = p.update(func(ns, _ walletdb.ReadWriteBucket) error {
			return p.store.CreateProgramAccount(
				ns, payer, stateAddr, program, data,
			)
		})
		require.NoError(t, err)

		err = p.Dispense(&DispenseRequest{
			State:     stateAddr,
			Recipient: recipient,
			Amount:    1,
		})
		require.True(t, IsError(err, ErrAuthorityMismatch),
			"bump %d: unexpected error: %v", bump, err)
	}

	err = p.view(func(ns, _ walletdb.ReadBucket) error {
		h, err := p.store.HoldingAccount(ns, recipient)
		require.NoError(t, err)
		require.Zero(t, h.Amount)
		return nil
	})
	require.NoError(t, err)
}

// TestConvertStoreErr checks the mapping of account store failures.
func TestConvertStoreErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code tokenstore.ErrorCode
		want ErrorCode
	}{
		{tokenstore.ErrAlreadyExists, ErrAlreadyInitialized},
		{tokenstore.ErrInsufficientFunds, ErrInsufficientFunds},
		{tokenstore.ErrMintMismatch, ErrMintMismatch},
		{tokenstore.ErrOwnerMismatch, ErrAuthorityMismatch},
		{tokenstore.ErrOverflow, ErrOverflow},
		{tokenstore.ErrData, ErrData},
		{tokenstore.ErrDatabase, ErrDatabase},
		{tokenstore.ErrAccountNotFound, ErrDatabase},
	}
	for _, test := range tests {
		serr := tokenstore.Error{Code: test.code, Desc: "store"}
		err := convertStoreErr("op", serr)
		require.True(t, IsError(err, test.want), "%v", test.code)
		require.True(t, tokenstore.IsError(err, test.code))
	}
}
