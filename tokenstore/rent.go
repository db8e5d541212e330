// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tokenstore

// Rent parameters of the host ledger.  An account holding at least
// MinimumBalance(len(data)) lamports is exempt from rent collection.
const (
	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThreshold     = 2
)

// MinimumBalance returns the rent-exempt minimum, in lamports, for an account
// with dataLen bytes of data.
func MinimumBalance(dataLen int) uint64 {
	return uint64(accountStorageOverhead+dataLen) * lamportsPerByteYear *
		exemptionThreshold
}
