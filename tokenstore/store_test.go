// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tokenstore_test

import (
	"math"
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

var namespaceKey = []byte("tokenstore")

const lamportsPerSol = 1_000_000_000

type testHarness struct {
	t     *testing.T
	db    walletdb.DB
	store *tokenstore.Store
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	db, err := walletdb.Create("bdb", dbPath, true, 10*time.Second, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	var store *tokenstore.Store
	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := tx.CreateTopLevelBucket(namespaceKey)
		if err != nil {
			return err
		}
		if err := tokenstore.Create(ns); err != nil {
			return err
		}
		store, err = tokenstore.Open(ns)
		return err
	})
	require.NoError(t, err)

	return &testHarness{t: t, db: db, store: store}
}

func (h *testHarness) update(f func(ns walletdb.ReadWriteBucket) error) error {
	return walletdb.Update(h.db, func(tx walletdb.ReadWriteTx) error {
		return f(tx.ReadWriteBucket(namespaceKey))
	})
}

func (h *testHarness) view(f func(ns walletdb.ReadBucket) error) {
	h.t.Helper()

	err := walletdb.View(h.db, func(tx walletdb.ReadTx) error {
		return f(tx.ReadBucket(namespaceKey))
	})
	require.NoError(h.t, err)
}

func (h *testHarness) fundedWallet(lamports uint64) common.PublicKey {
	h.t.Helper()

	addr := types.NewAccount().PublicKey
	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.Airdrop(ns, addr, lamports)
	})
	require.NoError(h.t, err)
	return addr
}

func (h *testHarness) lamports(addr common.PublicKey) uint64 {
	h.t.Helper()

	var balance uint64
	h.view(func(ns walletdb.ReadBucket) error {
		var err error
		balance, err = h.store.Lamports(ns, addr)
		return err
	})
	return balance
}

// TestCreateExisting ensures a store cannot be created over existing data.
func TestCreateExisting(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		return tokenstore.Create(ns)
	})
	require.True(t, tokenstore.IsError(err, tokenstore.ErrAlreadyExists))

	err = walletdb.View(h.db, func(tx walletdb.ReadTx) error {
		_, err := tokenstore.Open(tx.ReadBucket(namespaceKey))
		return err
	})
	require.NoError(t, err)
}

// TestMinimumBalance checks the rent-exempt minimums of the token program
// account sizes.
func TestMinimumBalance(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(890_880), tokenstore.MinimumBalance(0))
	require.Equal(t, uint64(1_461_600),
		tokenstore.MinimumBalance(tokenstore.MintSize))
	require.Equal(t, uint64(2_039_280),
		tokenstore.MinimumBalance(tokenstore.HoldingSize))
}

// TestAirdrop ensures airdrops accumulate and unknown wallets are empty.
func TestAirdrop(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	require.Zero(t, h.lamports(types.NewAccount().PublicKey))

	wallet := h.fundedWallet(lamportsPerSol)
	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.Airdrop(ns, wallet, lamportsPerSol)
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2*lamportsPerSol), h.lamports(wallet))

	err = h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.Airdrop(ns, wallet, math.MaxUint64)
	})
	require.True(t, tokenstore.IsError(err, tokenstore.ErrOverflow))
	require.Equal(t, uint64(2*lamportsPerSol), h.lamports(wallet))
}

// TestCreateMint covers mint creation, rent payment and duplicate
// addresses.
func TestCreateMint(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	payer := h.fundedWallet(lamportsPerSol)
	mint := types.NewAccount().PublicKey
	authority := types.NewAccount().PublicKey

	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.CreateMint(ns, payer, mint, 9, authority)
	})
	require.NoError(t, err)

	rent := tokenstore.MinimumBalance(tokenstore.MintSize)
	require.Equal(t, lamportsPerSol-rent, h.lamports(payer))
	require.Equal(t, rent, h.lamports(mint))

	h.view(func(ns walletdb.ReadBucket) error {
		m, err := h.store.Mint(ns, mint)
		require.NoError(t, err)
		require.Equal(t, uint8(9), m.Decimals)
		require.True(t, m.IsInitialized)
		require.Zero(t, m.Supply)
		require.NotNil(t, m.MintAuthority)
		require.Equal(t, authority, *m.MintAuthority)
		require.Nil(t, m.FreezeAuthority)
		return nil
	})

	err = h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.CreateMint(ns, payer, mint, 6, payer)
	})
	require.True(t, tokenstore.IsError(err, tokenstore.ErrAlreadyExists))
	require.Equal(t, lamportsPerSol-rent, h.lamports(payer))
}

// TestCreateMintInsufficientFunds ensures unfunded and underfunded payers
// are refused without side effects.
func TestCreateMintInsufficientFunds(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	mint := types.NewAccount().PublicKey

	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.CreateMint(
			ns, types.NewAccount().PublicKey, mint, 9, mint,
		)
	})
	require.True(t, tokenstore.IsError(err, tokenstore.ErrInsufficientFunds))

	poor := h.fundedWallet(tokenstore.MinimumBalance(tokenstore.MintSize) - 1)
	err = h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.CreateMint(ns, poor, mint, 9, mint)
	})
	require.True(t, tokenstore.IsError(err, tokenstore.ErrInsufficientFunds))

	h.view(func(ns walletdb.ReadBucket) error {
		require.False(t, h.store.Exists(ns, mint))
		return nil
	})
}

// TestMintTo exercises minting into holding accounts and every rejection
// path of MintTo.
func TestMintTo(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	payer := h.fundedWallet(lamportsPerSol)
	authority := types.NewAccount().PublicKey
	mint := types.NewAccount().PublicKey
	otherMint := types.NewAccount().PublicKey
	owner := types.NewAccount().PublicKey

	var holding, otherHolding common.PublicKey
	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		err := h.store.CreateMint(ns, payer, mint, 9, authority)
		if err != nil {
			return err
		}
		err = h.store.CreateMint(ns, payer, otherMint, 9, authority)
		if err != nil {
			return err
		}
		holding, err = h.store.CreateHoldingAccount(ns, payer, owner, mint)
		if err != nil {
			return err
		}
		otherHolding, err = h.store.CreateHoldingAccount(
			ns, payer, owner, otherMint,
		)
		return err
	})
	require.NoError(t, err)

	wantHolding, err := pda.FindHoldingAddress(owner, mint)
	require.NoError(t, err)
	require.Equal(t, wantHolding, holding)

	mintTo := func(mint, dest, signer common.PublicKey, amount uint64) error {
		return h.update(func(ns walletdb.ReadWriteBucket) error {
			return h.store.MintTo(ns, mint, dest, signer, amount)
		})
	}

	require.NoError(t, mintTo(mint, holding, authority, 500))
	require.NoError(t, mintTo(mint, holding, authority, 0))

	err = mintTo(mint, otherHolding, authority, 1)
	require.True(t, tokenstore.IsError(err, tokenstore.ErrMintMismatch))

	err = mintTo(mint, holding, payer, 1)
	require.True(t, tokenstore.IsError(err, tokenstore.ErrOwnerMismatch))

	err = mintTo(mint, types.NewAccount().PublicKey, authority, 1)
	require.True(t, tokenstore.IsError(err, tokenstore.ErrAccountNotFound))

	err = mintTo(mint, holding, authority, math.MaxUint64)
	require.True(t, tokenstore.IsError(err, tokenstore.ErrOverflow))

	h.view(func(ns walletdb.ReadBucket) error {
		m, err := h.store.Mint(ns, mint)
		require.NoError(t, err)
		require.Equal(t, uint64(500), m.Supply)

		acct, err := h.store.HoldingAccount(ns, holding)
		require.NoError(t, err)
		require.Equal(t, uint64(500), acct.Amount)
		require.Equal(t, owner, acct.Owner)
		require.Equal(t, mint, acct.Mint)

		other, err := h.store.HoldingAccount(ns, otherHolding)
		require.NoError(t, err)
		require.Zero(t, other.Amount)

		// A holding account is not a mint.
		_, err = h.store.Mint(ns, holding)
		require.True(t, tokenstore.IsError(err, tokenstore.ErrMintMismatch))
		return nil
	})
}

// TestProgramAccount ensures program accounts are created once and only
// readable by their owning program.
func TestProgramAccount(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	payer := h.fundedWallet(lamportsPerSol)
	program := types.NewAccount().PublicKey
	addr := types.NewAccount().PublicKey
	data := []byte{1, 2, 3}

	create := func() error {
		return h.update(func(ns walletdb.ReadWriteBucket) error {
			return h.store.CreateProgramAccount(
				ns, payer, addr, program, data,
			)
		})
	}
	require.NoError(t, create())
	require.True(t, tokenstore.IsError(create(), tokenstore.ErrAlreadyExists))

	h.view(func(ns walletdb.ReadBucket) error {
		got, err := h.store.ProgramAccount(ns, addr, program)
		require.NoError(t, err)
		require.Equal(t, data, got)

		_, err = h.store.ProgramAccount(ns, addr, common.TokenProgramID)
		require.True(t, tokenstore.IsError(err, tokenstore.ErrOwnerMismatch))
		return nil
	})
}

// TestIsWallet ensures only funded system accounts without data are
// reported as wallets.
func TestIsWallet(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	payer := h.fundedWallet(lamportsPerSol)
	owned := types.NewAccount().PublicKey
	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.CreateProgramAccount(
			ns, payer, owned, types.NewAccount().PublicKey, []byte{1},
		)
	})
	require.NoError(t, err)

	h.view(func(ns walletdb.ReadBucket) error {
		for _, test := range []struct {
			addr common.PublicKey
			want bool
		}{
			{payer, true},
			{owned, false},
			{types.NewAccount().PublicKey, false},
		} {
			got, err := h.store.IsWallet(ns, test.addr)
			require.NoError(t, err)
			require.Equal(t, test.want, got, test.addr.ToBase58())
		}
		return nil
	})

	// A program account cannot pay for new accounts.
	err = h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.CreateProgramAccount(
			ns, owned, types.NewAccount().PublicKey, payer, nil,
		)
	})
	require.True(t, tokenstore.IsError(err, tokenstore.ErrOwnerMismatch))
}

// TestHoldingLayout ensures stored holding accounts decode with the token
// program's own parser.
func TestHoldingLayout(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	payer := h.fundedWallet(lamportsPerSol)
	mint := types.NewAccount().PublicKey

	err := h.update(func(ns walletdb.ReadWriteBucket) error {
		return h.store.CreateMint(ns, payer, mint, 0, payer)
	})
	require.NoError(t, err)

	var holding common.PublicKey
	err = h.update(func(ns walletdb.ReadWriteBucket) error {
		var err error
		holding, err = h.store.CreateHoldingAccount(ns, payer, payer, mint)
		return err
	})
	require.NoError(t, err)

	h.view(func(ns walletdb.ReadBucket) error {
		acct, err := h.store.HoldingAccount(ns, holding)
		require.NoError(t, err)
		require.Equal(t, mint, acct.Mint)
		require.Equal(t, payer, acct.Owner)
		require.Zero(t, acct.Amount)
		require.Nil(t, acct.Delegate)
		require.Nil(t, acct.IsNative)
		require.Nil(t, acct.CloseAuthority)
		require.Zero(t, acct.DelegatedAmount)
		return nil
	})
}
