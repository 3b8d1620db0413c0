// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the hash primitives of the bridge: the double
// SHA256 hashes identifying blocks and transactions, the Hash160 script
// commitment and the dual merkle trees proofs are verified against.
package chainhash
