// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package faucet implements a token faucet program on top of the account store.

A faucet owns exactly one mint.  Its address and the address of the mint
authority are derived from the program identity, so no private key exists for
either and only the program can sign for the mint.

Initialize creates the mint and a state record that remembers the mint
address and the authority bump.  It can succeed only once per program.

Dispense mints any requested amount into a recipient holding account of the
faucet mint.  The authority is recomputed from the stored bump on every call
and must match the mint authority recorded on the mint.

Every operation runs in a single ledger transaction.  Either all of its
account changes are applied or none are.
*/
package faucet
