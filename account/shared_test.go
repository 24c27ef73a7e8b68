package account

import (
	"testing"

	"github.com/google/uuid"
)

func TestOwnerShortCircuit(t *testing.T) {
	owner := uuid.New()
	s := NewSharedAccount(uuid.New(), "guild-bank", owner)

	// Owner passes every permission without a member record.
	for _, p := range Permissions() {
		if !s.HasPermission(owner, p) {
			t.Errorf("owner should hold %s", p)
		}
	}
	if _, ok := s.Member(owner); ok {
		t.Error("owner should not appear in the member map")
	}
	if !s.IsMember(owner) {
		t.Error("owner counts as a member")
	}
}

func TestMemberPermissionsIndependent(t *testing.T) {
	owner := uuid.New()
	member := uuid.New()
	s := NewSharedAccount(uuid.New(), "guild-bank", owner)

	s.AddMember(member, PermDeposit)

	if !s.HasPermission(member, PermDeposit) {
		t.Error("granted DEPOSIT should pass")
	}
	if s.HasPermission(member, PermWithdraw) {
		t.Error("ungranted WITHDRAW should fail")
	}

	// Ownership is just another boolean, not an umbrella grant.
	if !s.SetPermission(member, PermOwnership, true) {
		t.Fatal("set permission on existing member should succeed")
	}
	if s.HasPermission(member, PermWithdraw) {
		t.Error("OWNERSHIP grant must not imply WITHDRAW")
	}

	if !s.SetPermission(member, PermDeposit, false) {
		t.Fatal("revoke should succeed")
	}
	if s.HasPermission(member, PermDeposit) {
		t.Error("revoked DEPOSIT should fail")
	}
}

func TestAddMemberIdempotent(t *testing.T) {
	s := NewSharedAccount(uuid.New(), "guild-bank", uuid.New())
	member := uuid.New()

	first := s.AddMember(member, PermDeposit)
	second := s.AddMember(member, PermWithdraw)

	if first != second {
		t.Error("re-adding a member should return the existing record")
	}
	if s.HasPermission(member, PermWithdraw) {
		t.Error("re-add must not merge new grants")
	}
}

func TestRemoveMember(t *testing.T) {
	s := NewSharedAccount(uuid.New(), "guild-bank", uuid.New())
	member := uuid.New()
	s.AddMember(member, PermDeposit, PermBalance)

	if !s.RemoveMember(member) {
		t.Fatal("removing an existing member should report true")
	}

	// A removed member immediately fails every check.
	for _, p := range Permissions() {
		if s.HasPermission(member, p) {
			t.Errorf("removed member should not hold %s", p)
		}
	}
	if s.IsMember(member) {
		t.Error("removed member should not be a member")
	}
	if s.RemoveMember(member) {
		t.Error("second removal should report false")
	}
}

func TestSetPermissionUnknownMember(t *testing.T) {
	s := NewSharedAccount(uuid.New(), "guild-bank", uuid.New())
	if s.SetPermission(uuid.New(), PermDeposit, true) {
		t.Error("set on unknown member should report false")
	}
}

func TestTransferOwnership(t *testing.T) {
	oldOwner := uuid.New()
	newOwner := uuid.New()
	s := NewSharedAccount(uuid.New(), "guild-bank", oldOwner)
	s.AddMember(newOwner, PermDeposit)

	s.TransferOwnership(newOwner)

	if !s.IsOwner(newOwner) {
		t.Error("new owner should own the account")
	}
	if _, ok := s.Member(newOwner); ok {
		t.Error("promoted member record should be dropped")
	}
	if s.IsOwner(oldOwner) {
		t.Error("previous owner should lose ownership")
	}
	if s.HasPermission(oldOwner, PermDeposit) {
		t.Error("previous owner keeps no implicit access")
	}
}
