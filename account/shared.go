package account

import (
	"sync"

	"github.com/google/uuid"
)

// Permission is one independently toggleable capability a shared-account
// member may hold. Permissions are flat booleans, not a hierarchy: granting
// PermOwnership does not imply any of the others.
type Permission string

const (
	PermDeposit           Permission = "deposit"
	PermWithdraw          Permission = "withdraw"
	PermBalance           Permission = "balance"
	PermTransferOwnership Permission = "transfer_ownership"
	PermAddMember         Permission = "add_member"
	PermRemoveMember      Permission = "remove_member"
	PermModifyMember      Permission = "modify_member"
	PermOwnership         Permission = "ownership"
	PermDeleteAccount     Permission = "delete_account"
)

// Permissions lists every defined permission.
func Permissions() []Permission {
	return []Permission{
		PermDeposit, PermWithdraw, PermBalance,
		PermTransferOwnership, PermAddMember, PermRemoveMember,
		PermModifyMember, PermOwnership, PermDeleteAccount,
	}
}

// Member is one non-owner participant in a shared account with its set of
// granted permissions.
type Member struct {
	ID    uuid.UUID           `json:"id"`
	Perms map[Permission]bool `json:"perms"`
}

// NewMember creates a member with the given initial grants.
func NewMember(id uuid.UUID, initial ...Permission) *Member {
	m := &Member{ID: id, Perms: make(map[Permission]bool)}
	for _, p := range initial {
		m.Perms[p] = true
	}
	return m
}

// HasPermission reports whether this member holds the permission.
func (m *Member) HasPermission(p Permission) bool {
	return m.Perms[p]
}

// SetPermission grants or revokes one permission.
func (m *Member) SetPermission(p Permission, value bool) {
	if m.Perms == nil {
		m.Perms = make(map[Permission]bool)
	}
	m.Perms[p] = value
}

// SharedAccount is an account with one owner and zero-or-more permissioned
// members. The owner is implicitly all-powerful and does not appear in the
// member map.
type SharedAccount struct {
	base

	mu      sync.RWMutex
	owner   uuid.UUID
	members map[uuid.UUID]*Member
}

// NewSharedAccount creates a shared account owned by owner.
func NewSharedAccount(id uuid.UUID, name string, owner uuid.UUID) *SharedAccount {
	return &SharedAccount{
		base:    newBase(id, name),
		owner:   owner,
		members: make(map[uuid.UUID]*Member),
	}
}

// IsPlayer always reports false for shared accounts.
func (a *SharedAccount) IsPlayer() bool { return false }

// Owner returns the owning account id.
func (a *SharedAccount) Owner() uuid.UUID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner
}

// IsOwner reports whether u owns this account.
func (a *SharedAccount) IsOwner(u uuid.UUID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner == u
}

// IsMember reports whether u is the owner or a member.
func (a *SharedAccount) IsMember(u uuid.UUID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.owner == u {
		return true
	}
	_, ok := a.members[u]
	return ok
}

// Member returns the member record for u, if one exists.
func (a *SharedAccount) Member(u uuid.UUID) (*Member, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m, ok := a.members[u]
	return m, ok
}

// Members returns a copy of the member list.
func (a *SharedAccount) Members() []*Member {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*Member, 0, len(a.members))
	for _, m := range a.members {
		out = append(out, m)
	}
	return out
}

// AddMember adds u as a member with the given initial grants, returning the
// existing record unchanged when u is already a member.
func (a *SharedAccount) AddMember(u uuid.UUID, initial ...Permission) *Member {
	a.mu.Lock()
	defer a.mu.Unlock()

	if m, ok := a.members[u]; ok {
		return m
	}
	m := NewMember(u, initial...)
	a.members[u] = m
	return m
}

// RemoveMember removes u from the member map, reporting whether a record
// existed. A removed member immediately fails every permission check.
func (a *SharedAccount) RemoveMember(u uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.members[u]
	delete(a.members, u)
	return ok
}

// HasPermission reports whether u may exercise p. The owner short-circuits
// true without consulting the member map.
func (a *SharedAccount) HasPermission(u uuid.UUID, p Permission) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.owner == u {
		return true
	}
	m, ok := a.members[u]
	return ok && m.HasPermission(p)
}

// SetPermission grants or revokes one permission for member u, reporting
// false when u is not a member.
func (a *SharedAccount) SetPermission(u uuid.UUID, p Permission, value bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.members[u]
	if !ok {
		return false
	}
	m.SetPermission(p, value)
	return true
}

// TransferOwnership hands the account to newOwner. If newOwner was a member
// its member record is dropped; the previous owner keeps no implicit access.
func (a *SharedAccount) TransferOwnership(newOwner uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.members, newOwner)
	a.owner = newOwner
}

// RestoreMembers replaces the member map wholesale. Intended for stores
// rebuilding an account from persisted state.
func (a *SharedAccount) RestoreMembers(members []*Member) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.members = make(map[uuid.UUID]*Member, len(members))
	for _, m := range members {
		a.members[m.ID] = m
	}
}
