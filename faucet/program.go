// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package faucet

import (
	"context"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/tokenfaucet/tokenfaucet/pda"
	"github.com/tokenfaucet/tokenfaucet/tokenstore"
	"golang.org/x/sync/errgroup"
)

// Decimals is the fixed precision of the faucet mint.  Dispense amounts are
// raw units, so one whole token is 10^Decimals units.
const Decimals = 9

// batchWorkers bounds the number of dispenses DispenseBatch runs at once.
const batchWorkers = 8

// IndexNamespaceKey is the top-level bucket mapping each program identity
// to the address of its state record.
var IndexNamespaceKey = []byte("faucet")

// Program is a faucet program deployed on a ledger.  All of its operations
// run as single ledger transactions.
type Program struct {
	id        common.PublicKey
	db        walletdb.DB
	store     *tokenstore.Store
	authority pda.Derived
	mint      pda.Derived
}

// New returns the faucet program with identity id on the ledger in db.  The
// derived authority and mint are resolved up front; failing to derive them
// is a configuration error.
func New(db walletdb.DB, id common.PublicKey) (*Program, error) {
	authority, err := pda.FindAuthority(id)
	if err != nil {
		return nil, err
	}
	mint, err := pda.FindMint(id)
	if err != nil {
		return nil, err
	}

	store, err := tokenstore.OpenDB(db)
	if err != nil {
		return nil, convertStoreErr("cannot open account store", err)
	}

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(IndexNamespaceKey)
		return err
	})
	if err != nil {
		return nil, faucetError(ErrDatabase, "cannot open faucet index", err)
	}

	log.Debugf("Faucet program %s: authority %v, mint %v", id.ToBase58(),
		authority, mint)

	return &Program{
		id:        id,
		db:        db,
		store:     store,
		authority: authority,
		mint:      mint,
	}, nil
}

// ID returns the program identity.
func (p *Program) ID() common.PublicKey {
	return p.id
}

// Authority returns the derived mint authority and its bump.
func (p *Program) Authority() pda.Derived {
	return p.authority
}

// Mint returns the derived mint address and its bump.
func (p *Program) Mint() pda.Derived {
	return p.mint
}

// Store returns the account store of the ledger the program runs on.
func (p *Program) Store() *tokenstore.Store {
	return p.store
}

// InitializeRequest describes an Initialize call.
type InitializeRequest struct {
	// Payer funds the rent of the mint and the state record.
	Payer common.PublicKey

	// State is the address the state record is created at.
	State common.PublicKey

	// Mint and Authority are optional client-resolved addresses.  When
	// set, they must equal the addresses the program derives.
	Mint      common.PublicKey
	Authority common.PublicKey
}

// InitializeResult describes the accounts created by Initialize.
type InitializeResult struct {
	State     common.PublicKey
	Mint      common.PublicKey
	Authority common.PublicKey
	Bump      uint8
}

// Initialize creates the faucet mint and the state record binding it to the
// derived authority.  It succeeds at most once per program: later calls fail
// with ErrAlreadyInitialized and leave the ledger unchanged.
func (p *Program) Initialize(req *InitializeRequest) (*InitializeResult, error) {
	err := p.checkDerived(req.Mint, p.mint.Address, "mint")
	if err != nil {
		return nil, err
	}
	err = p.checkDerived(req.Authority, p.authority.Address, "authority")
	if err != nil {
		return nil, err
	}

	state := &State{
		IsInitialized: true,
		Mint:          p.mint.Address,
		Bump:          p.authority.Bump,
	}
	data, err := state.serialize()
	if err != nil {
		return nil, err
	}

	err = p.update(func(ns, index walletdb.ReadWriteBucket) error {
		return p.initialize(ns, index, req, data)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Initialized faucet %s: state %s, mint %s, authority %v",
		p.id.ToBase58(), req.State.ToBase58(),
		p.mint.Address.ToBase58(), p.authority)
	log.Tracef("Faucet state: %v", spewState(state))

	return &InitializeResult{
		State:     req.State,
		Mint:      p.mint.Address,
		Authority: p.authority.Address,
		Bump:      p.authority.Bump,
	}, nil
}

func (p *Program) initialize(ns, index walletdb.ReadWriteBucket,
	req *InitializeRequest, data []byte) error {

	if existing := index.Get(p.id.Bytes()); existing != nil {
		str := fmt.Sprintf("faucet %s already initialized with state %s",
			p.id.ToBase58(), common.PublicKeyFromBytes(existing).ToBase58())
		return faucetError(ErrAlreadyInitialized, str, nil)
	}
	if p.store.Exists(ns, p.mint.Address) {
		str := fmt.Sprintf("faucet mint %s already exists",
			p.mint.Address.ToBase58())
		return faucetError(ErrAlreadyInitialized, str, nil)
	}
	if p.store.Exists(ns, req.State) {
		str := fmt.Sprintf("state account %s already exists",
			req.State.ToBase58())
		return faucetError(ErrAlreadyInitialized, str, nil)
	}

	funds, err := p.store.Lamports(ns, req.Payer)
	if err != nil {
		return convertStoreErr("cannot read payer balance", err)
	}
	wallet, err := p.store.IsWallet(ns, req.Payer)
	if err != nil {
		return convertStoreErr("cannot read payer account", err)
	}
	if funds != 0 && !wallet {
		str := fmt.Sprintf("payer %s is not a system wallet and cannot "+
			"fund initialization", req.Payer.ToBase58())
		return faucetError(ErrInsufficientFunds, str, nil)
	}
	rent := tokenstore.MinimumBalance(tokenstore.MintSize) +
		tokenstore.MinimumBalance(StateSize)
	if funds < rent {
		str := fmt.Sprintf("payer %s holds %d lamports, initialization "+
			"needs %d", req.Payer.ToBase58(), funds, rent)
		return faucetError(ErrInsufficientFunds, str, nil)
	}

	err = p.store.CreateMint(
		ns, req.Payer, p.mint.Address, Decimals, p.authority.Address,
	)
	if err != nil {
		return convertStoreErr("cannot create faucet mint", err)
	}

	err = p.store.CreateProgramAccount(ns, req.Payer, req.State, p.id, data)
	if err != nil {
		return convertStoreErr("cannot create state account", err)
	}

	err = index.Put(p.id.Bytes(), req.State.Bytes())
	if err != nil {
		return faucetError(ErrDatabase, "cannot index state account", err)
	}
	return nil
}

// DispenseRequest describes a Dispense call.
type DispenseRequest struct {
	// State is the address of the faucet state record.
	State common.PublicKey

	// Recipient is the holding account credited with Amount.
	Recipient common.PublicKey

	// Amount is the number of raw units to mint.  Zero is accepted and
	// mints nothing.
	Amount uint64

	// Mint and Authority are optional client-resolved addresses.  When
	// set, they must equal the mint recorded in the state and the
	// authority recomputed from its bump.
	Mint      common.PublicKey
	Authority common.PublicKey
}

// Dispense mints req.Amount raw units of the faucet mint into the recipient
// holding account, signed by the authority recomputed from the stored bump.
// The recipient balance and the mint supply rise by exactly req.Amount, or
// neither changes.
func (p *Program) Dispense(req *DispenseRequest) error {
	err := p.update(func(ns, _ walletdb.ReadWriteBucket) error {
		return p.dispense(ns, req)
	})
	if err != nil {
		return err
	}

	log.Debugf("Dispensed %d units to %s", req.Amount,
		req.Recipient.ToBase58())

	return nil
}

func (p *Program) dispense(ns walletdb.ReadWriteBucket,
	req *DispenseRequest) error {

	state, err := p.fetchState(ns, req.State)
	if err != nil {
		return err
	}

	if req.Mint != (common.PublicKey{}) && req.Mint != state.Mint {
		str := fmt.Sprintf("mint %s does not match faucet mint %s",
			req.Mint.ToBase58(), state.Mint.ToBase58())
		return faucetError(ErrMintMismatch, str, nil)
	}

	authority, err := pda.CreateAuthority(p.id, state.Bump)
	if err != nil {
		str := fmt.Sprintf("stored bump %d does not derive an authority",
			state.Bump)
		return faucetError(ErrAuthorityMismatch, str, err)
	}
	if req.Authority != (common.PublicKey{}) && req.Authority != authority {
		str := fmt.Sprintf("supplied authority %s is not the faucet "+
			"authority %s", req.Authority.ToBase58(), authority.ToBase58())
		return faucetError(ErrAuthorityMismatch, str, nil)
	}

	holding, err := p.store.HoldingAccount(ns, req.Recipient)
	switch {
	case tokenstore.IsError(err, tokenstore.ErrAccountNotFound):
		str := fmt.Sprintf("holding account %s not found",
			req.Recipient.ToBase58())
		return faucetError(ErrHoldingAccountNotFound, str, err)
	case tokenstore.IsError(err, tokenstore.ErrOwnerMismatch):
		str := fmt.Sprintf("%s is not a holding account",
			req.Recipient.ToBase58())
		return faucetError(ErrMintMismatch, str, err)
	case err != nil:
		return convertStoreErr("cannot read holding account", err)
	}
	if holding.Mint != state.Mint {
		str := fmt.Sprintf("holding account %s is bound to mint %s, "+
			"not %s", req.Recipient.ToBase58(),
			holding.Mint.ToBase58(), state.Mint.ToBase58())
		return faucetError(ErrMintMismatch, str, nil)
	}

	mint, err := p.store.Mint(ns, state.Mint)
	if err != nil {
		return convertStoreErr("cannot read faucet mint", err)
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != authority {
		str := fmt.Sprintf("authority %s is not the mint authority of %s",
			authority.ToBase58(), state.Mint.ToBase58())
		return faucetError(ErrAuthorityMismatch, str, nil)
	}

	err = p.store.MintTo(ns, state.Mint, req.Recipient, authority, req.Amount)
	if err != nil {
		return convertStoreErr("cannot mint to recipient", err)
	}
	return nil
}

// DispenseBatch runs each request as its own Dispense and returns the error
// of each, in request order.  A failing request does not affect the others.
// Requests not yet started when ctx is done fail with the context error.
func (p *Program) DispenseBatch(ctx context.Context,
	reqs []*DispenseRequest) []error {

	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(batchWorkers)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = p.Dispense(req)
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// State returns the state record at addr.  ErrNotInitialized is returned if
// no faucet state exists there.
func (p *Program) State(addr common.PublicKey) (*State, error) {
	var state *State
	err := p.view(func(ns, _ walletdb.ReadBucket) error {
		var err error
		state, err = p.fetchState(ns, addr)
		return err
	})
	return state, err
}

// FindState returns the address of the program's state record.
func (p *Program) FindState() (common.PublicKey, error) {
	var addr common.PublicKey
	err := p.view(func(_, index walletdb.ReadBucket) error {
		v := index.Get(p.id.Bytes())
		if v == nil {
			str := fmt.Sprintf("faucet %s is not initialized",
				p.id.ToBase58())
			return faucetError(ErrNotInitialized, str, nil)
		}
		addr = common.PublicKeyFromBytes(v)
		return nil
	})
	return addr, err
}

func (p *Program) fetchState(ns walletdb.ReadBucket,
	addr common.PublicKey) (*State, error) {

	data, err := p.store.ProgramAccount(ns, addr, p.id)
	switch {
	case tokenstore.IsError(err, tokenstore.ErrAccountNotFound):
		str := fmt.Sprintf("no faucet state at %s", addr.ToBase58())
		return nil, faucetError(ErrNotInitialized, str, err)
	case tokenstore.IsError(err, tokenstore.ErrOwnerMismatch):
		str := fmt.Sprintf("%s is not a faucet state account",
			addr.ToBase58())
		return nil, faucetError(ErrNotInitialized, str, err)
	case err != nil:
		return nil, convertStoreErr("cannot read state account", err)
	}

	state, err := deserializeState(data)
	if err != nil {
		return nil, err
	}
	if !state.IsInitialized {
		str := fmt.Sprintf("faucet state %s is not initialized",
			addr.ToBase58())
		return nil, faucetError(ErrNotInitialized, str, nil)
	}
	return state, nil
}

// checkDerived compares an optional caller-supplied address with the one the
// program derived.
func (p *Program) checkDerived(supplied, derived common.PublicKey,
	what string) error {

	if supplied == (common.PublicKey{}) || supplied == derived {
		return nil
	}
	str := fmt.Sprintf("supplied %s %s does not match derived %s", what,
		supplied.ToBase58(), derived.ToBase58())
	return faucetError(ErrDerivationMismatch, str, nil)
}

// update runs f in a read-write ledger transaction with the account store
// and faucet index buckets.  Errors that are not faucet errors are reported
// as ErrDatabase.
func (p *Program) update(f func(ns, index walletdb.ReadWriteBucket) error) error {
	err := walletdb.Update(p.db, func(tx walletdb.ReadWriteTx) error {
		return f(
			tx.ReadWriteBucket(tokenstore.NamespaceKey),
			tx.ReadWriteBucket(IndexNamespaceKey),
		)
	})
	return wrapDBErr(err)
}

// view is the read-only counterpart of update.
func (p *Program) view(f func(ns, index walletdb.ReadBucket) error) error {
	err := walletdb.View(p.db, func(tx walletdb.ReadTx) error {
		return f(
			tx.ReadBucket(tokenstore.NamespaceKey),
			tx.ReadBucket(IndexNamespaceKey),
		)
	})
	return wrapDBErr(err)
}

func wrapDBErr(err error) error {
	if err == nil {
		return nil
	}
	var ferr Error
	if errors.As(err, &ferr) {
		return err
	}
	return faucetError(ErrDatabase, "ledger transaction failed", err)
}
