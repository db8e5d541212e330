// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tokenstore implements the host ledger accounts the faucet program
// runs against: lamport wallets, token mints, holding accounts and
// program-owned data accounts.
//
// Store methods take the namespace bucket of the store rather than opening
// transactions themselves.  Callers group several calls into one
// walletdb.Update so that a failing step rolls back every earlier one.
package tokenstore

import (
	"fmt"
	"math/bits"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/tokenfaucet/tokenfaucet/pda"
)

// NamespaceKey is the top-level bucket the account store is kept in by
// OpenDB.
var NamespaceKey = []byte("ledger")

// Store is the account store of the host ledger.
type Store struct {
	version uint32
}

// OpenDB opens the account store kept in the NamespaceKey bucket of db,
// creating the bucket and the store first if they do not exist.
func OpenDB(db walletdb.DB) (*Store, error) {
	var s *Store
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := tx.CreateTopLevelBucket(NamespaceKey)
		if err != nil {
			return storeError(ErrDatabase, "cannot open namespace", err)
		}
		if walletdb.BucketIsEmpty(ns) {
			log.Infof("Creating account store")
			if err := Create(ns); err != nil {
				return err
			}
		}
		s, err = Open(ns)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create creates a new persistent account store in the namespace bucket.
// ErrAlreadyExists is returned if the bucket already holds data.
func Create(ns walletdb.ReadWriteBucket) error {
	return createStore(ns)
}

// Open opens the account store in the namespace bucket.
func Open(ns walletdb.ReadBucket) (*Store, error) {
	version, err := fetchVersion(ns)
	if err != nil {
		return nil, err
	}
	if version > LatestVersion {
		str := fmt.Sprintf("store version %d is newer than supported "+
			"version %d", version, LatestVersion)
		return nil, storeError(ErrUnknownVersion, str, nil)
	}
	return &Store{version: version}, nil
}

// Airdrop credits lamports to addr, creating a system wallet there if no
// account exists.  It funds payers on test networks.
func (s *Store) Airdrop(ns walletdb.ReadWriteBucket, addr common.PublicKey,
	lamports uint64) error {

	rec, err := fetchAccount(ns, addr)
	switch {
	case IsError(err, ErrAccountNotFound):
		rec = &accountRecord{Owner: common.SystemProgramID}
	case err != nil:
		return err
	}

	total, carry := bits.Add64(rec.Lamports, lamports, 0)
	if carry != 0 {
		str := fmt.Sprintf("airdrop to %s overflows balance",
			addr.ToBase58())
		return storeError(ErrOverflow, str, nil)
	}
	rec.Lamports = total

	log.Debugf("Airdropped %d lamports to %s", lamports, addr.ToBase58())

	return putAccount(ns, addr, rec)
}

// Lamports returns the lamport balance of addr.  Addresses without an
// account hold zero lamports.
func (s *Store) Lamports(ns walletdb.ReadBucket, addr common.PublicKey) (
	uint64, error) {

	rec, err := fetchAccount(ns, addr)
	switch {
	case IsError(err, ErrAccountNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return rec.Lamports, nil
}

// Exists reports whether an account is stored at addr.
func (s *Store) Exists(ns walletdb.ReadBucket, addr common.PublicKey) bool {
	return existsRawAccount(ns, addr) != nil
}

// IsWallet reports whether addr is a system wallet able to pay for new
// accounts.  A missing account is not a wallet.
func (s *Store) IsWallet(ns walletdb.ReadBucket, addr common.PublicKey) (
	bool, error) {

	rec, err := fetchAccount(ns, addr)
	switch {
	case IsError(err, ErrAccountNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return rec.isWallet(), nil
}

// createAccount allocates an account at addr owned by owner holding data.
// The payer, a system wallet, funds the rent-exempt minimum.
func (s *Store) createAccount(ns walletdb.ReadWriteBucket, payer,
	addr, owner common.PublicKey, data []byte) error {

	if s.Exists(ns, addr) {
		str := fmt.Sprintf("account %s already in use", addr.ToBase58())
		return storeError(ErrAlreadyExists, str, nil)
	}

	payerRec, err := fetchAccount(ns, payer)
	switch {
	case IsError(err, ErrAccountNotFound):
		str := fmt.Sprintf("payer %s has no funds", payer.ToBase58())
		return storeError(ErrInsufficientFunds, str, nil)
	case err != nil:
		return err
	}
	if !payerRec.isWallet() {
		str := fmt.Sprintf("payer %s is not a system wallet",
			payer.ToBase58())
		return storeError(ErrOwnerMismatch, str, nil)
	}

	rent := MinimumBalance(len(data))
	if payerRec.Lamports < rent {
		str := fmt.Sprintf("payer %s holds %d lamports, account %s "+
			"needs %d", payer.ToBase58(), payerRec.Lamports,
			addr.ToBase58(), rent)
		return storeError(ErrInsufficientFunds, str, nil)
	}
	payerRec.Lamports -= rent

	if err := putAccount(ns, payer, payerRec); err != nil {
		return err
	}
	return putAccount(ns, addr, &accountRecord{
		Owner:    owner,
		Lamports: rent,
		Data:     data,
	})
}

// CreateMint creates an initialized mint at addr with the given decimals and
// mint authority, funded by payer.  The mint has no freeze authority.
func (s *Store) CreateMint(ns walletdb.ReadWriteBucket, payer,
	addr common.PublicKey, decimals uint8, authority common.PublicKey) error {

	data, err := valueMint(&token.MintAccount{
		MintAuthority: &authority,
		Decimals:      decimals,
		IsInitialized: true,
	})
	if err != nil {
		return err
	}

	err = s.createAccount(ns, payer, addr, common.TokenProgramID, data)
	if err != nil {
		return err
	}

	log.Debugf("Created mint %s (decimals %d, authority %s)",
		addr.ToBase58(), decimals, authority.ToBase58())

	return nil
}

// Mint returns the mint stored at addr.
func (s *Store) Mint(ns walletdb.ReadBucket, addr common.PublicKey) (
	*token.MintAccount, error) {

	rec, err := fetchAccount(ns, addr)
	if err != nil {
		return nil, err
	}
	return readMint(addr, rec)
}

// CreateHoldingAccount creates the associated holding account of owner for
// mint, funded by payer, and returns its address.
func (s *Store) CreateHoldingAccount(ns walletdb.ReadWriteBucket, payer,
	owner, mint common.PublicKey) (common.PublicKey, error) {

	if _, err := s.Mint(ns, mint); err != nil {
		return common.PublicKey{}, err
	}

	addr, err := pda.FindHoldingAddress(owner, mint)
	if err != nil {
		return common.PublicKey{}, storeError(ErrData,
			"cannot derive holding address", err)
	}

	data, err := valueHolding(&token.TokenAccount{
		Mint:  mint,
		Owner: owner,
	})
	if err != nil {
		return common.PublicKey{}, err
	}

	err = s.createAccount(ns, payer, addr, common.TokenProgramID, data)
	if err != nil {
		return common.PublicKey{}, err
	}

	log.Debugf("Created holding account %s for owner %s, mint %s",
		addr.ToBase58(), owner.ToBase58(), mint.ToBase58())

	return addr, nil
}

// HoldingAccount returns the holding account stored at addr.
func (s *Store) HoldingAccount(ns walletdb.ReadBucket, addr common.PublicKey) (
	*token.TokenAccount, error) {

	rec, err := fetchAccount(ns, addr)
	if err != nil {
		return nil, err
	}
	return readHolding(addr, rec)
}

// CreateProgramAccount creates a data account at addr owned by program,
// funded by payer.  Account creation is the point at which concurrent
// writers to the same address are ordered: only the first succeeds and the
// rest observe ErrAlreadyExists.
func (s *Store) CreateProgramAccount(ns walletdb.ReadWriteBucket, payer,
	addr, program common.PublicKey, data []byte) error {

	err := s.createAccount(ns, payer, addr, program, data)
	if err != nil {
		return err
	}

	log.Debugf("Created %d byte account %s owned by %s", len(data),
		addr.ToBase58(), program.ToBase58())

	return nil
}

// ProgramAccount returns the data of the account at addr.  ErrOwnerMismatch
// is returned if the account is not owned by program.
func (s *Store) ProgramAccount(ns walletdb.ReadBucket, addr,
	program common.PublicKey) ([]byte, error) {

	rec, err := fetchAccount(ns, addr)
	if err != nil {
		return nil, err
	}
	if rec.Owner != program {
		str := fmt.Sprintf("account %s is owned by %s, not %s",
			addr.ToBase58(), rec.Owner.ToBase58(),
			program.ToBase58())
		return nil, storeError(ErrOwnerMismatch, str, nil)
	}
	return rec.Data, nil
}

// MintTo raises the balance of the holding account dest and the supply of
// mint by amount.  signer must be the mint authority of mint.  A zero amount
// validates the accounts and changes nothing.
func (s *Store) MintTo(ns walletdb.ReadWriteBucket, mint, dest,
	signer common.PublicKey, amount uint64) error {

	mintRec, err := fetchAccount(ns, mint)
	if err != nil {
		return err
	}
	m, err := readMint(mint, mintRec)
	if err != nil {
		return err
	}

	destRec, err := fetchAccount(ns, dest)
	if err != nil {
		return err
	}
	h, err := readHolding(dest, destRec)
	if err != nil {
		return err
	}

	if h.Mint != mint {
		str := fmt.Sprintf("holding account %s belongs to mint %s, "+
			"not %s", dest.ToBase58(), h.Mint.ToBase58(),
			mint.ToBase58())
		return storeError(ErrMintMismatch, str, nil)
	}
	if m.MintAuthority == nil || *m.MintAuthority != signer {
		str := fmt.Sprintf("%s is not the mint authority of %s",
			signer.ToBase58(), mint.ToBase58())
		return storeError(ErrOwnerMismatch, str, nil)
	}

	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		str := fmt.Sprintf("minting %d overflows supply of %s", amount,
			mint.ToBase58())
		return storeError(ErrOverflow, str, nil)
	}
	balance, carry := bits.Add64(h.Amount, amount, 0)
	if carry != 0 {
		str := fmt.Sprintf("minting %d overflows balance of %s", amount,
			dest.ToBase58())
		return storeError(ErrOverflow, str, nil)
	}

	if amount == 0 {
		return nil
	}

	m.Supply = supply
	h.Amount = balance

	mintRec.Data, err = valueMint(m)
	if err != nil {
		return err
	}
	destRec.Data, err = valueHolding(h)
	if err != nil {
		return err
	}
	if err := putAccount(ns, mint, mintRec); err != nil {
		return err
	}
	if err := putAccount(ns, dest, destRec); err != nil {
		return err
	}

	log.Tracef("Minted %d of %s to %s (supply %d, balance %d)", amount,
		mint.ToBase58(), dest.ToBase58(), supply, balance)

	return nil
}
