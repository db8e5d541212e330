// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/tokenfaucet/tokenfaucet/faucet"
	"github.com/tokenfaucet/tokenfaucet/pda"
	"github.com/tokenfaucet/tokenfaucet/tokenstore"
)

// command is a faucetctl subcommand.  Its exported fields are its options.
type command interface {
	run(ctx context.Context, a *app, args []string) error
}

// app is the state shared by all commands.
type app struct {
	db      walletdb.DB
	program *faucet.Program
	store   *tokenstore.Store
}

func (a *app) update(f func(ns walletdb.ReadWriteBucket) error) error {
	return walletdb.Update(a.db, func(tx walletdb.ReadWriteTx) error {
		return f(tx.ReadWriteBucket(tokenstore.NamespaceKey))
	})
}

func (a *app) view(f func(ns walletdb.ReadBucket) error) error {
	return walletdb.View(a.db, func(tx walletdb.ReadTx) error {
		return f(tx.ReadBucket(tokenstore.NamespaceKey))
	})
}

// stateAddress parses s, or looks up the program's state record when s is
// empty.
func (a *app) stateAddress(s string) (common.PublicKey, error) {
	if s == "" {
		return a.program.FindState()
	}
	return pda.ParseAddress(s)
}

var commands = []struct {
	name  string
	short string
	long  string
	cmd   command
}{
	{"airdrop", "Fund a wallet",
		"Credit lamports to a wallet, creating it if needed.",
		&airdropCmd{Lamports: 10 * lamportsPerSol}},
	{"initialize", "Initialize the faucet",
		"Create the faucet mint and state record.  Succeeds once per program.",
		&initializeCmd{}},
	{"createholding", "Create a holding account",
		"Create the holding account of an owner for the faucet mint.",
		&createHoldingCmd{}},
	{"dispense", "Mint tokens to holding accounts",
		"Mint raw units of the faucet mint into one or more holding accounts.",
		&dispenseCmd{}},
	{"state", "Show the faucet state", "Show the faucet state record.",
		&stateCmd{}},
	{"balance", "Show an account balance",
		"Show the token balance of a holding account or the lamports of a wallet.",
		&balanceCmd{}},
	{"mint", "Show the faucet mint", "Show supply, decimals and authority of the faucet mint.",
		&mintCmd{}},
	{"backup", "Copy the ledger database",
		"Write a consistent copy of the ledger database to a file.",
		&backupCmd{}},
}

func commandByName(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c.cmd, true
		}
	}
	return nil, false
}

const lamportsPerSol = 1_000_000_000

type airdropCmd struct {
	Address  string `long:"address" description:"Wallet to fund" required:"true"`
	Lamports uint64 `long:"lamports" description:"Lamports to credit"`
}

func (c *airdropCmd) run(_ context.Context, a *app, _ []string) error {
	addr, err := pda.ParseAddress(c.Address)
	if err != nil {
		return err
	}
	err = a.update(func(ns walletdb.ReadWriteBucket) error {
		return a.store.Airdrop(ns, addr, c.Lamports)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Airdropped %d lamports to %s\n", c.Lamports, addr.ToBase58())
	return nil
}

type initializeCmd struct {
	Payer string `long:"payer" description:"Wallet funding the new accounts" required:"true"`
	State string `long:"state" description:"Address of the state record (default: new random address)"`
}

func (c *initializeCmd) run(_ context.Context, a *app, _ []string) error {
	payer, err := pda.ParseAddress(c.Payer)
	if err != nil {
		return err
	}
	state := types.NewAccount().PublicKey
	if c.State != "" {
		state, err = pda.ParseAddress(c.State)
		if err != nil {
			return err
		}
	}

	res, err := a.program.Initialize(&faucet.InitializeRequest{
		Payer: payer,
		State: state,
	})
	if err != nil {
		return err
	}
	fmt.Printf("State:     %s\n", res.State.ToBase58())
	fmt.Printf("Mint:      %s\n", res.Mint.ToBase58())
	fmt.Printf("Authority: %s (bump %d)\n", res.Authority.ToBase58(), res.Bump)
	return nil
}

type createHoldingCmd struct {
	Payer string `long:"payer" description:"Wallet funding the holding account" required:"true"`
	Owner string `long:"owner" description:"Owner of the holding account (default: new random address)"`
}

func (c *createHoldingCmd) run(_ context.Context, a *app, _ []string) error {
	payer, err := pda.ParseAddress(c.Payer)
	if err != nil {
		return err
	}
	owner := types.NewAccount().PublicKey
	if c.Owner != "" {
		owner, err = pda.ParseAddress(c.Owner)
		if err != nil {
			return err
		}
	}

	var holding common.PublicKey
	err = a.update(func(ns walletdb.ReadWriteBucket) error {
		var err error
		holding, err = a.store.CreateHoldingAccount(
			ns, payer, owner, a.program.Mint().Address,
		)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Holding account %s (owner %s)\n", holding.ToBase58(),
		owner.ToBase58())
	return nil
}

type dispenseCmd struct {
	State      string   `long:"state" description:"Address of the state record (default: looked up by program)"`
	Recipients []string `long:"recipient" description:"Holding account to credit; may be repeated" required:"true"`
	Amount     uint64   `long:"amount" description:"Raw units to mint to each recipient" required:"true"`
}

func (c *dispenseCmd) run(ctx context.Context, a *app, _ []string) error {
	state, err := a.stateAddress(c.State)
	if err != nil {
		return err
	}

	reqs := make([]*faucet.DispenseRequest, 0, len(c.Recipients))
	for _, r := range c.Recipients {
		recipient, err := pda.ParseAddress(r)
		if err != nil {
			return err
		}
		reqs = append(reqs, &faucet.DispenseRequest{
			State:     state,
			Recipient: recipient,
			Amount:    c.Amount,
		})
	}

	var failed int
	for i, err := range a.program.DispenseBatch(ctx, reqs) {
		if err != nil {
			log.Errorf("Dispense to %s failed: %v",
				reqs[i].Recipient.ToBase58(), err)
			failed++
			continue
		}
		fmt.Printf("Dispensed %d to %s\n", c.Amount,
			reqs[i].Recipient.ToBase58())
	}
	if failed != 0 {
		return fmt.Errorf("%d of %d dispenses failed", failed, len(reqs))
	}
	return nil
}

type stateCmd struct {
	State string `long:"state" description:"Address of the state record (default: looked up by program)"`
}

func (c *stateCmd) run(_ context.Context, a *app, _ []string) error {
	addr, err := a.stateAddress(c.State)
	if err != nil {
		return err
	}
	state, err := a.program.State(addr)
	if err != nil {
		return err
	}
	fmt.Printf("State:       %s\n", addr.ToBase58())
	fmt.Printf("Initialized: %v\n", state.IsInitialized)
	fmt.Printf("Mint:        %s\n", state.Mint.ToBase58())
	fmt.Printf("Bump:        %d\n", state.Bump)
	return nil
}

type balanceCmd struct {
	Address string `long:"address" description:"Holding account or wallet" required:"true"`
}

func (c *balanceCmd) run(_ context.Context, a *app, _ []string) error {
	addr, err := pda.ParseAddress(c.Address)
	if err != nil {
		return err
	}
	return a.view(func(ns walletdb.ReadBucket) error {
		h, err := a.store.HoldingAccount(ns, addr)
		switch {
		case err == nil:
			fmt.Printf("%d (mint %s)\n", h.Amount, h.Mint.ToBase58())
			return nil
		case !tokenstore.IsError(err, tokenstore.ErrOwnerMismatch) &&
			!tokenstore.IsError(err, tokenstore.ErrAccountNotFound):
			return err
		}

		lamports, err := a.store.Lamports(ns, addr)
		if err != nil {
			return err
		}
		fmt.Printf("%d lamports\n", lamports)
		return nil
	})
}

type mintCmd struct{}

func (c *mintCmd) run(_ context.Context, a *app, _ []string) error {
	addr := a.program.Mint().Address
	return a.view(func(ns walletdb.ReadBucket) error {
		m, err := a.store.Mint(ns, addr)
		if err != nil {
			return err
		}
		authority := "none"
		if m.MintAuthority != nil {
			authority = m.MintAuthority.ToBase58()
		}
		fmt.Printf("Mint:      %s\n", addr.ToBase58())
		fmt.Printf("Supply:    %d\n", m.Supply)
		fmt.Printf("Decimals:  %d\n", m.Decimals)
		fmt.Printf("Authority: %s\n", authority)
		return nil
	})
}

type backupCmd struct {
	Out string `long:"out" description:"File to write the copy to" required:"true"`
}

func (c *backupCmd) run(_ context.Context, a *app, _ []string) error {
	path := cleanAndExpandPath(c.Out)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if err := a.db.Copy(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Infof("Wrote ledger copy to %s", path)
	return nil
}
