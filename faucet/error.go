// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package faucet

import (
	"errors"
	"fmt"

	"github.com/tokenfaucet/tokenfaucet/tokenstore"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates an error with the underlying database.  When
	// this error code is set, the Err field of the Error will be set to
	// the underlying error returned from the database.
	ErrDatabase ErrorCode = iota

	// ErrData indicates that a stored account could not be decoded.
	ErrData

	// ErrAlreadyInitialized indicates that the faucet state or mint of
	// the program already exists.
	ErrAlreadyInitialized

	// ErrNotInitialized indicates that no initialized faucet state exists
	// at the requested address.
	ErrNotInitialized

	// ErrInsufficientFunds indicates that the payer cannot cover the
	// rent of the accounts created during initialization.
	ErrInsufficientFunds

	// ErrMintMismatch indicates that an account is bound to a different
	// mint than the one recorded in the faucet state.
	ErrMintMismatch

	// ErrAuthorityMismatch indicates that the authority recomputed from
	// the stored bump is not the mint authority of the faucet mint.  It
	// signals either a stale bump or a forged signer.
	ErrAuthorityMismatch

	// ErrDerivationMismatch indicates that a caller-supplied derived
	// address differs from the one recomputed by the program.
	ErrDerivationMismatch

	// ErrHoldingAccountNotFound indicates that the recipient holding
	// account does not exist.
	ErrHoldingAccountNotFound

	// ErrOverflow indicates that minting would overflow the recipient
	// balance or the mint supply.
	ErrOverflow
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDatabase:               "ErrDatabase",
	ErrData:                   "ErrData",
	ErrAlreadyInitialized:     "ErrAlreadyInitialized",
	ErrNotInitialized:         "ErrNotInitialized",
	ErrInsufficientFunds:      "ErrInsufficientFunds",
	ErrMintMismatch:           "ErrMintMismatch",
	ErrAuthorityMismatch:      "ErrAuthorityMismatch",
	ErrDerivationMismatch:     "ErrDerivationMismatch",
	ErrHoldingAccountNotFound: "ErrHoldingAccountNotFound",
	ErrOverflow:               "ErrOverflow",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can happen during faucet
// operation.  It is similar to tokenstore.Error.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.Err
}

// faucetError creates an Error given a set of arguments.
func faucetError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether err is an Error, or wraps one, with a matching
// error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}

// storeErrorCodes maps account store failures onto faucet error kinds.
// Codes absent from the map are reported as ErrDatabase.
var storeErrorCodes = map[tokenstore.ErrorCode]ErrorCode{
	tokenstore.ErrData:              ErrData,
	tokenstore.ErrAlreadyExists:     ErrAlreadyInitialized,
	tokenstore.ErrInsufficientFunds: ErrInsufficientFunds,
	tokenstore.ErrMintMismatch:      ErrMintMismatch,
	tokenstore.ErrOwnerMismatch:     ErrAuthorityMismatch,
	tokenstore.ErrOverflow:          ErrOverflow,
}

// convertStoreErr wraps err, returned by the account store, in an Error
// carrying the matching faucet error code.
func convertStoreErr(desc string, err error) error {
	var serr tokenstore.Error
	if !errors.As(err, &serr) {
		return faucetError(ErrDatabase, desc, err)
	}
	code, ok := storeErrorCodes[serr.Code]
	if !ok {
		code = ErrDatabase
	}
	return faucetError(code, desc, err)
}
