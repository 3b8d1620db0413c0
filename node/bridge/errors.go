// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import "github.com/pkg/errors"

// Rejection classes of the ledger.  Callers classify failures with
// errors.Is; operations wrap these with request context.  Every rejection is
// all-or-nothing: no record, index or counter is left partially updated.
var (
	// ErrMalformedInput marks requests that fail static validation before
	// any proof or state check runs.
	ErrMalformedInput = errors.New("malformed request")

	// ErrChainContinuity is returned when a pushed header does not chain
	// to the stored block at the previous number.
	ErrChainContinuity = errors.New("block does not extend known parent")

	// ErrDuplicateSubmission is returned when a mint for either identity
	// of the transaction was already recorded.
	ErrDuplicateSubmission = errors.New("transaction already minted")

	// ErrProofInvalid is returned when merkle recomputation does not
	// reach the stored root.
	ErrProofInvalid = errors.New("merkle proof does not match stored root")

	// ErrOutputMismatch is returned when the transaction does not pay the
	// configured deposit script the declared value, or carries no
	// OP_RETURN destination.
	ErrOutputMismatch = errors.New("transaction outputs do not match request")

	// ErrFeeViolation is returned when the declared fee does not leave
	// the relayer a margin below the estimated cost floor, or the
	// declared gas price exceeds the ceiling.
	ErrFeeViolation = errors.New("declared fees violate fee policy")

	// ErrAuthorizationDenied is returned before any state is touched when
	// the caller lacks the owner or group capability.
	ErrAuthorizationDenied = errors.New("caller is not authorized")

	// ErrReentrantCall is returned when an external transfer target calls
	// back into a guarded operation before it completes.
	ErrReentrantCall = errors.New("reentrant ledger call")

	// ErrUnknownChain is returned for operations on an unregistered
	// source chain id.
	ErrUnknownChain = errors.New("source chain is not registered")

	// ErrUnknownBlock is returned when the referenced block is absent
	// from the header store.
	ErrUnknownBlock = errors.New("block not found")

	// ErrUnknownBurn is returned when no burn request exists at the
	// referenced index.
	ErrUnknownBurn = errors.New("no burn request at index")

	// ErrUnknownMint is returned when no mint record matches the lookup.
	ErrUnknownMint = errors.New("no mint record found")

	// ErrChainExists is returned when registering a chain id twice.
	ErrChainExists = errors.New("source chain already registered")
)
