// Copyright (c) 2015 The btcsuite developers
// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tokenstore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/near/borsh-go"
)

// Naming
//
// The following variables are commonly used in this file and given
// reserved names:
//
//   ns: The namespace bucket for this package
//   b:  The primary bucket being operated on
//   k:  A single bucket key
//   v:  A single bucket value
//
// Functions use the naming scheme `Op[Raw]Type[Field]`, as in wtxmgr:
//
//   key:     return a db key for some data
//   value:   return a db value for some data
//   put:     insert or replace a value into a bucket
//   fetch:   read and return a value
//   exists:  return the raw (nil if not found) value for some data

// Big endian is the preferred byte order for the store header fields.
var byteOrder = binary.BigEndian

// Database versions.  Versions start at 1 and increment for each database
// change.
const (
	// LatestVersion is the most recent store version.
	LatestVersion = 1
)

// Bucket names
var (
	bucketAccounts = []byte("a")
)

// Root (namespace) bucket keys
var (
	rootCreateDate = []byte("date")
	rootVersion    = []byte("vers")
)

// Account data sizes of the token program.
const (
	// MintSize is the length of an encoded mint.
	MintSize = token.MintAccountSize

	// HoldingSize is the length of an encoded holding account.
	HoldingSize = token.TokenAccountSize
)

// optionSome is the little-endian option tag for a present value.
const optionSome uint32 = 1

// holdingStateInitialized marks a holding account as usable.
const holdingStateInitialized uint8 = 1

// accountRecord is the value stored for every address in the accounts
// bucket.  System wallets have no data and are owned by the system program.
type accountRecord struct {
	Owner    common.PublicKey
	Lamports uint64
	Data     []byte
}

func (r *accountRecord) isWallet() bool {
	return r.Owner == common.SystemProgramID && len(r.Data) == 0
}

// mintLayout is the 82 byte mint encoding of the token program.
type mintLayout struct {
	MintAuthorityOption   uint32
	MintAuthority         common.PublicKey
	Supply                uint64
	Decimals              uint8
	IsInitialized         bool
	FreezeAuthorityOption uint32
	FreezeAuthority       common.PublicKey
}

// holdingLayout is the 165 byte token account encoding of the token program.
type holdingLayout struct {
	Mint                 common.PublicKey
	Owner                common.PublicKey
	Amount               uint64
	DelegateOption       uint32
	Delegate             common.PublicKey
	State                uint8
	IsNativeOption       uint32
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption uint32
	CloseAuthority       common.PublicKey
}

func keyAccount(addr common.PublicKey) []byte {
	return addr.Bytes()
}

func valueAccount(rec *accountRecord) ([]byte, error) {
	v, err := borsh.Serialize(*rec)
	if err != nil {
		str := "failed to serialize account"
		return nil, storeError(ErrData, str, err)
	}
	return v, nil
}

func existsRawAccount(ns walletdb.ReadBucket, addr common.PublicKey) []byte {
	return ns.NestedReadBucket(bucketAccounts).Get(keyAccount(addr))
}

func fetchAccount(ns walletdb.ReadBucket, addr common.PublicKey) (
	*accountRecord, error) {

	v := existsRawAccount(ns, addr)
	if v == nil {
		str := fmt.Sprintf("account %s not found", addr.ToBase58())
		return nil, storeError(ErrAccountNotFound, str, nil)
	}

	var rec accountRecord
	if err := borsh.Deserialize(&rec, v); err != nil {
		str := fmt.Sprintf("account %s: malformed record",
			addr.ToBase58())
		return nil, storeError(ErrData, str, err)
	}
	return &rec, nil
}

func putAccount(ns walletdb.ReadWriteBucket, addr common.PublicKey,
	rec *accountRecord) error {

	v, err := valueAccount(rec)
	if err != nil {
		return err
	}
	err = ns.NestedReadWriteBucket(bucketAccounts).Put(keyAccount(addr), v)
	if err != nil {
		str := fmt.Sprintf("failed to put account %s", addr.ToBase58())
		return storeError(ErrDatabase, str, err)
	}
	return nil
}

func valueMint(m *token.MintAccount) ([]byte, error) {
	layout := mintLayout{
		Supply:        m.Supply,
		Decimals:      m.Decimals,
		IsInitialized: m.IsInitialized,
	}
	if m.MintAuthority != nil {
		layout.MintAuthorityOption = optionSome
		layout.MintAuthority = *m.MintAuthority
	}
	if m.FreezeAuthority != nil {
		layout.FreezeAuthorityOption = optionSome
		layout.FreezeAuthority = *m.FreezeAuthority
	}

	v, err := borsh.Serialize(layout)
	if err != nil {
		return nil, storeError(ErrData, "failed to serialize mint", err)
	}
	if len(v) != MintSize {
		str := fmt.Sprintf("mint: encoded %d bytes, want %d", len(v),
			MintSize)
		return nil, storeError(ErrData, str, nil)
	}
	return v, nil
}

func readMint(addr common.PublicKey, rec *accountRecord) (*token.MintAccount,
	error) {

	if rec.Owner != common.TokenProgramID {
		str := fmt.Sprintf("account %s is not a mint", addr.ToBase58())
		return nil, storeError(ErrOwnerMismatch, str, nil)
	}
	if len(rec.Data) != MintSize {
		str := fmt.Sprintf("account %s is not a mint", addr.ToBase58())
		return nil, storeError(ErrMintMismatch, str, nil)
	}
	m, err := token.MintAccountFromData(rec.Data)
	if err != nil {
		str := fmt.Sprintf("mint %s: malformed data", addr.ToBase58())
		return nil, storeError(ErrData, str, err)
	}
	return &m, nil
}

func valueHolding(h *token.TokenAccount) ([]byte, error) {
	layout := holdingLayout{
		Mint:            h.Mint,
		Owner:           h.Owner,
		Amount:          h.Amount,
		State:           holdingStateInitialized,
		DelegatedAmount: h.DelegatedAmount,
	}
	if h.Delegate != nil {
		layout.DelegateOption = optionSome
		layout.Delegate = *h.Delegate
	}
	if h.IsNative != nil {
		layout.IsNativeOption = optionSome
		layout.IsNative = *h.IsNative
	}
	if h.CloseAuthority != nil {
		layout.CloseAuthorityOption = optionSome
		layout.CloseAuthority = *h.CloseAuthority
	}

	v, err := borsh.Serialize(layout)
	if err != nil {
		str := "failed to serialize holding account"
		return nil, storeError(ErrData, str, err)
	}
	if len(v) != HoldingSize {
		str := fmt.Sprintf("holding account: encoded %d bytes, want %d",
			len(v), HoldingSize)
		return nil, storeError(ErrData, str, nil)
	}
	return v, nil
}

func readHolding(addr common.PublicKey, rec *accountRecord) (
	*token.TokenAccount, error) {

	if rec.Owner != common.TokenProgramID || len(rec.Data) != HoldingSize {
		str := fmt.Sprintf("account %s is not a holding account",
			addr.ToBase58())
		return nil, storeError(ErrOwnerMismatch, str, nil)
	}
	h, err := token.TokenAccountFromData(rec.Data)
	if err != nil {
		str := fmt.Sprintf("holding account %s: malformed data",
			addr.ToBase58())
		return nil, storeError(ErrData, str, err)
	}
	return &h, nil
}

func fetchVersion(ns walletdb.ReadBucket) (uint32, error) {
	v := ns.Get(rootVersion)
	if len(v) != 4 {
		str := "no account store in namespace"
		return 0, storeError(ErrNoExists, str, nil)
	}
	return byteOrder.Uint32(v), nil
}

func createStore(ns walletdb.ReadWriteBucket) error {
	// Ensure that nothing currently exists in the namespace bucket.
	if !walletdb.BucketIsEmpty(ns) {
		const str = "namespace is not empty"
		return storeError(ErrAlreadyExists, str, nil)
	}

	// Write the latest store version.
	v := make([]byte, 4)
	byteOrder.PutUint32(v, LatestVersion)
	err := ns.Put(rootVersion, v)
	if err != nil {
		str := "failed to store latest database version"
		return storeError(ErrDatabase, str, err)
	}

	// Save the creation date of the store.
	v = make([]byte, 8)
	byteOrder.PutUint64(v, uint64(time.Now().Unix()))
	err = ns.Put(rootCreateDate, v)
	if err != nil {
		str := "failed to store database creation time"
		return storeError(ErrDatabase, str, err)
	}

	_, err = ns.CreateBucket(bucketAccounts)
	if err != nil {
		str := "failed to create accounts bucket"
		return storeError(ErrDatabase, str, err)
	}

	return nil
}
