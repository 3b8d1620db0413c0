// Copyright (c) 2021 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// GroupSubmitters is the membership group allowed to push blocks and burn
// fulfillments into the ledger.
const GroupSubmitters uint32 = 1

// AccessControl is the external authorization collaborator.  Guard failure
// aborts the whole operation before any state is touched.
type AccessControl interface {
	IsOwner(caller string) bool
	TransferOwnership(caller, newOwner string) error
	IsMember(group uint32, caller string) bool
	AddMember(caller string, group uint32, addr string) error
	RemoveMember(caller string, group uint32, addr string) error
}

// AssetTransfer moves native settlement-chain value on behalf of the ledger.
type AssetTransfer interface {
	TransferNative(to string, amount uint64) error
}

// Token is the mintable/burnable capability set of a bridged asset.  A nil
// Token binding on a chain means the native transfer path is used instead.
type Token interface {
	Mint(to string, value uint64) error
	Burn(value uint64) error
	Transfer(to string, value uint64) error
	TransferFrom(from, to string, value uint64) error
	Permit(owner, spender string, value, deadline uint64, signature []byte) error
}

// PriceCalculator converts native relay cost units into fee units.  A nil
// binding means the fee floor equals the raw cost unchanged.
type PriceCalculator interface {
	Convert(nativeCost uint64) uint64
}

// transferGuard is the reentrancy latch around operations that call out to
// an external transfer target.  It records which goroutine holds it, so
// only a callback from the transfer target into a guarded operation on the
// same goroutine is refused; requests from other goroutines queue on the
// ledger mutex instead.
type transferGuard struct {
	holder int64
}

func (g *transferGuard) hold() {
	atomic.StoreInt64(&g.holder, goroutineID())
}

func (g *transferGuard) release() {
	atomic.StoreInt64(&g.holder, 0)
}

// reentered reports whether the calling goroutine already holds the guard.
func (g *transferGuard) reentered() bool {
	holder := atomic.LoadInt64(&g.holder)
	return holder != 0 && holder == goroutineID()
}

// goroutineID parses the current goroutine's id from the header line of its
// stack trace ("goroutine N [running]:").  The runtime offers no direct
// accessor.
func goroutineID() int64 {
	var buf [64]byte
	header := buf[:runtime.Stack(buf[:], false)]
	header = bytes.TrimPrefix(header, []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		if id, err := strconv.ParseInt(string(header[:i]), 10, 64); err == nil {
			return id
		}
	}
	return -1
}

// StaticAccess is a minimal in-process AccessControl: a single owner plus
// group allow-lists.  The daemon wires it from configuration; deployments
// with an external authority implement AccessControl instead.
type StaticAccess struct {
	mu     sync.RWMutex
	owner  string
	groups map[uint32]map[string]struct{}
}

// NewStaticAccess returns a StaticAccess owned by owner.
func NewStaticAccess(owner string) *StaticAccess {
	return &StaticAccess{
		owner:  owner,
		groups: make(map[uint32]map[string]struct{}),
	}
}

// IsOwner reports whether caller is the current owner.
func (a *StaticAccess) IsOwner(caller string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return caller != "" && caller == a.owner
}

// TransferOwnership hands the owner capability to newOwner.
func (a *StaticAccess) TransferOwnership(caller, newOwner string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrAuthorizationDenied
	}
	a.owner = newOwner
	return nil
}

// IsMember reports whether caller belongs to the group.
func (a *StaticAccess) IsMember(group uint32, caller string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.groups[group][caller]
	return ok
}

// AddMember adds addr to the group.  Owner only.
func (a *StaticAccess) AddMember(caller string, group uint32, addr string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrAuthorizationDenied
	}
	if a.groups[group] == nil {
		a.groups[group] = make(map[string]struct{})
	}
	a.groups[group][addr] = struct{}{}
	return nil
}

// RemoveMember removes addr from the group.  Owner only.
func (a *StaticAccess) RemoveMember(caller string, group uint32, addr string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrAuthorizationDenied
	}
	delete(a.groups[group], addr)
	return nil
}
