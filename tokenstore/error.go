// Copyright (c) 2015-2017 The btcsuite developers
// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tokenstore

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a category of error.
type ErrorCode uint8

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates an error with the underlying database.  When
	// this error code is set, the Err field of the Error will be
	// set to the underlying error returned from the database.
	ErrDatabase ErrorCode = iota

	// ErrData describes an error where data stored in the account store
	// is incorrect.  This may be due to missing values, values of
	// wrong sizes, or data from different buckets that is inconsistent with
	// itself.  Recovering from an ErrData requires rebuilding all account
	// history or manual database surgery.  If the failure was not due to
	// data corruption, this error category indicates a programming error in
	// this package.
	ErrData

	// ErrNoExists indicates that the store has not been created in the
	// namespace bucket.
	ErrNoExists

	// ErrAlreadyExists indicates that an account or store already exists
	// at the requested location.
	ErrAlreadyExists

	// ErrAccountNotFound indicates that no account exists at the
	// requested address.
	ErrAccountNotFound

	// ErrInsufficientFunds indicates that a payer cannot cover the
	// rent-exempt minimum of an account it is funding.
	ErrInsufficientFunds

	// ErrMintMismatch indicates that a holding account is bound to a
	// different mint than the one being operated on.
	ErrMintMismatch

	// ErrOwnerMismatch indicates that an account is owned by a different
	// program, or that a signer is not the authority an operation
	// requires.
	ErrOwnerMismatch

	// ErrOverflow indicates that a balance or supply counter would
	// exceed its 64-bit range.
	ErrOverflow

	// ErrUnknownVersion indicates that the store was written by a newer
	// version of this package.
	ErrUnknownVersion
)

var errStrs = [...]string{
	ErrDatabase:          "ErrDatabase",
	ErrData:              "ErrData",
	ErrNoExists:          "ErrNoExists",
	ErrAlreadyExists:     "ErrAlreadyExists",
	ErrAccountNotFound:   "ErrAccountNotFound",
	ErrInsufficientFunds: "ErrInsufficientFunds",
	ErrMintMismatch:      "ErrMintMismatch",
	ErrOwnerMismatch:     "ErrOwnerMismatch",
	ErrOverflow:          "ErrOverflow",
	ErrUnknownVersion:    "ErrUnknownVersion",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if int(e) < len(errStrs) && errStrs[e] != "" {
		return errStrs[e]
	}
	return fmt.Sprintf("ErrorCode(%d)", e)
}

// Error provides a single type for errors that can happen during account
// store operation.
type Error struct {
	Code ErrorCode // Describes the kind of error
	Desc string    // Human readable description of the issue
	Err  error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}
	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

func storeError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// IsError returns whether err is an Error, or wraps one, with a matching
// error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.Code == code
}
