/*
 * Copyright (c) 2021 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chainhash

// HashMerkleBranches takes two hashes, treated as the left and right tree
// nodes, and returns the hash of their concatenation.  This is a helper
// function used to aid in the generation of a merkle tree.
func HashMerkleBranches(left *Hash, right *Hash) *Hash {
	// Concatenate the left and right nodes.
	var hash [HashSize * 2]byte
	copy(hash[:HashSize], left[:])
	copy(hash[HashSize:], right[:])

	newHash := DoubleHashH(hash[:])
	return &newHash
}

// MerkleTreeRoot builds the merkle tree over the given leaves and returns
// the root hash.  The leaves are taken as already hashed inputs to the
// standard bitcoin pairing rule: at every level adjacent nodes are
// concatenated and double hashed, a lone node at the end of a level is
// paired with itself.
func MerkleTreeRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}

	nodes := make([]Hash, len(leaves))
	copy(nodes, leaves)

	for len(nodes) > 1 {
		next := make([]Hash, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			left := nodes[i]
			right := left
			if i+1 < len(nodes) {
				right = nodes[i+1]
			}
			next[i/2] = *HashMerkleBranches(&left, &right)
		}
		nodes = next
	}

	return nodes[0]
}

// BuildMerkleTreeProof returns the inclusion proof for the leaf at the given
// index: the ordered sequence of sibling hashes met while climbing from the
// leaf to the root.  The proof for a single-leaf tree is empty.
func BuildMerkleTreeProof(leaves []Hash, index uint32) []Hash {
	proof := make([]Hash, 0, 8)
	if len(leaves) == 0 || index >= uint32(len(leaves)) {
		return proof
	}

	nodes := make([]Hash, len(leaves))
	copy(nodes, leaves)

	for len(nodes) > 1 {
		sibling := index ^ 1
		if sibling >= uint32(len(nodes)) {
			// A lone node is paired with itself.
			sibling = index
		}
		proof = append(proof, nodes[sibling])

		next := make([]Hash, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			left := nodes[i]
			right := left
			if i+1 < len(nodes) {
				right = nodes[i+1]
			}
			next[i/2] = *HashMerkleBranches(&left, &right)
		}
		nodes = next
		index >>= 1
	}

	return proof
}

// ValidateMerkleTreeProof recomputes the root from the leaf and its proof and
// reports whether it matches the expected root.  At every step the parity of
// the index decides whether the proof element is the left or the right
// branch.
func ValidateMerkleTreeProof(leaf Hash, proof []Hash, index uint32, root Hash) bool {
	computed := leaf
	for i := range proof {
		if index&1 == 1 {
			computed = *HashMerkleBranches(&proof[i], &computed)
		} else {
			computed = *HashMerkleBranches(&computed, &proof[i])
		}
		index >>= 1
	}

	return computed == root
}
