package identity

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_CreateUser(t *testing.T) {
	m := NewMemory("111122223333")
	ctx := context.Background()

	got, err := m.CreateUser(ctx, "alice")
	if err != nil || got != Created {
		t.Fatalf("first CreateUser = %v, %v", got, err)
	}
	got, err = m.CreateUser(ctx, "alice")
	if err != nil || got != AlreadyExisted {
		t.Fatalf("second CreateUser = %v, %v", got, err)
	}
	if n := len(m.CallsTo(OpCreateUser)); n != 2 {
		t.Errorf("CreateUser calls = %d, want 2", n)
	}
}

func TestMemory_TagsAreAdditive(t *testing.T) {
	m := NewMemory("111122223333")
	m.PutUser("alice", map[string]string{"team": "core", "cost": "42"})

	err := m.TagUser(context.Background(), "alice", []Tag{{Key: "team", Value: "infra"}, {Key: "env", Value: "prod"}})
	if err != nil {
		t.Fatalf("TagUser: %v", err)
	}

	tags := m.Tags("alice")
	want := map[string]string{"team": "infra", "cost": "42", "env": "prod"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tags[%s] = %q, want %q", k, tags[k], v)
		}
	}
}

func TestMemory_GroupMembership(t *testing.T) {
	m := NewMemory("111122223333")
	m.PutUser("alice", nil, "a", "b")
	ctx := context.Background()

	if err := m.AddUserToGroup(ctx, "alice", "c"); err != nil {
		t.Fatalf("AddUserToGroup: %v", err)
	}
	if err := m.RemoveUserFromGroup(ctx, "alice", "a"); err != nil {
		t.Fatalf("RemoveUserFromGroup: %v", err)
	}
	if err := m.RemoveUserFromGroup(ctx, "alice", "zzz"); !errors.Is(err, ErrRemote) {
		t.Errorf("removing non-member: err = %v, want ErrRemote", err)
	}

	got := m.Groups("alice")
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("groups = %v, want [b c]", got)
	}
}

func TestMemory_FailOn(t *testing.T) {
	m := NewMemory("111122223333")
	boom := errors.New("boom")
	m.FailOn(OpCreateUser, "bob", boom)

	if _, err := m.CreateUser(context.Background(), "alice"); err != nil {
		t.Fatalf("alice should not fail: %v", err)
	}
	_, err := m.CreateUser(context.Background(), "bob")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if m.Exists("bob") {
		t.Error("bob should not exist after injected failure")
	}
}

func TestMemory_UnknownUser(t *testing.T) {
	m := NewMemory("111122223333")
	_, err := m.ListUserTags(context.Background(), "ghost")
	var re *RemoteError
	if !errors.As(err, &re) || re.Code != "NoSuchEntity" {
		t.Errorf("err = %v, want NoSuchEntity RemoteError", err)
	}
}

func TestMemory_NamesIgnoreCase(t *testing.T) {
	m := NewMemory("111122223333")
	m.PutUser("Alice", map[string]string{"Team": "core"}, "Admins")
	ctx := context.Background()

	got, err := m.CreateUser(ctx, "alice")
	if err != nil || got != AlreadyExisted {
		t.Fatalf("CreateUser(alice) = %v, %v; want AlreadyExisted", got, err)
	}

	if err := m.AddUserToGroup(ctx, "alice", "admins"); err != nil {
		t.Fatalf("AddUserToGroup: %v", err)
	}
	if groups := m.Groups("ALICE"); len(groups) != 1 || groups[0] != "Admins" {
		t.Errorf("groups = %v, want [Admins]", groups)
	}

	if err := m.TagUser(ctx, "alice", []Tag{{Key: "team", Value: "infra"}}); err != nil {
		t.Fatalf("TagUser: %v", err)
	}
	tags := m.Tags("alice")
	if len(tags) != 1 || tags["team"] != "infra" {
		t.Errorf("tags = %v, want map[team:infra]", tags)
	}

	if err := m.RemoveUserFromGroup(ctx, "alice", "ADMINS"); err != nil {
		t.Fatalf("RemoveUserFromGroup: %v", err)
	}
	if groups := m.Groups("alice"); len(groups) != 0 {
		t.Errorf("groups = %v, want none", groups)
	}
}
