// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bridge implements the settlement-side ledger of the SPV bridge.
//
// The ledger keeps one aggregate per source chain: a block-header store with
// reorganization pruning, the mint ledger crediting bridged funds against
// verified inclusion proofs, and the burn ledger tracking redemption
// requests and their later fulfillment on the chain of origin.  All mutating
// operations are serialized and apply atomically: a rejected call leaves no
// record, index or counter partially updated.
package bridge
