// Package access is an in-process role set: one owner, any number of managers, and a pause flag.
package access

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotOwner = errors.New("access: caller is not the owner")

// Roles implements amm.AccessPolicy. The owner is implicitly a manager.
type Roles struct {
	mu       sync.RWMutex
	owner    common.Address
	managers map[common.Address]struct{}
	paused   bool
}

// NewRoles returns unpaused roles with the given owner and managers.
func NewRoles(owner common.Address, managers ...common.Address) *Roles {
	r := &Roles{owner: owner, managers: make(map[common.Address]struct{}, len(managers))}
	for _, m := range managers {
		r.managers[m] = struct{}{}
	}
	return r
}

// IsOwner reports whether addr is the owner.
func (r *Roles) IsOwner(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return addr == r.owner
}

// IsManager reports whether addr may act as manager. The owner always may.
func (r *Roles) IsManager(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if addr == r.owner {
		return true
	}
	_, ok := r.managers[addr]
	return ok
}

// IsPaused reports whether mint, burn and rebalance are suspended.
func (r *Roles) IsPaused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// SetManager grants or revokes the manager role.
func (r *Roles) SetManager(caller, manager common.Address, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	if enabled {
		r.managers[manager] = struct{}{}
	} else {
		delete(r.managers, manager)
	}
	return nil
}

// Pause suspends the vault. Owner or manager only.
func (r *Roles) Pause(caller common.Address) error {
	return r.setPaused(caller, true)
}

// Unpause resumes the vault. Owner or manager only.
func (r *Roles) Unpause(caller common.Address) error {
	return r.setPaused(caller, false)
}

func (r *Roles) setPaused(caller common.Address, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		if _, ok := r.managers[caller]; !ok {
			return ErrNotOwner
		}
	}
	r.paused = paused
	return nil
}

// TransferOwnership hands the owner role to next.
func (r *Roles) TransferOwnership(caller, next common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	r.owner = next
	return nil
}
