package main

import (
	"context"
	"testing"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/auth"
)

func TestDemoCredentials(t *testing.T) {
	t.Setenv("GOVERN_DEMO_USERS", "staff@example.com:hunter2:staff, admin@example.com:letmein:admin")

	tests := []struct {
		name     string
		email    string
		password string
		ok       bool
		role     string
	}{
		{"staff account", "staff@example.com", "hunter2", true, "staff"},
		{"admin account", "admin@example.com", "letmein", true, auth.AdminRole},
		{"wrong password", "staff@example.com", "hunter3", false, ""},
		{"password prefix", "staff@example.com", "hunter", false, ""},
		{"unknown email", "nobody@example.com", "hunter2", false, ""},
		{"crossed credentials", "staff@example.com", "letmein", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, role, perms, ok := demoCredentials(context.Background(), tt.email, tt.password)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if subject != tt.email || role != tt.role {
				t.Errorf("identity = %s/%s, want %s/%s", subject, role, tt.email, tt.role)
			}
			if len(perms) == 0 {
				t.Error("accepted account carries no permissions")
			}
		})
	}
}

func TestDemoCredentialsAdminPermissions(t *testing.T) {
	t.Setenv("GOVERN_DEMO_USERS", "admin@example.com:letmein:admin")

	_, _, perms, ok := demoCredentials(context.Background(), "admin@example.com", "letmein")
	if !ok {
		t.Fatal("admin account rejected")
	}
	granted := make(map[string]bool, len(perms))
	for _, p := range perms {
		granted[p] = true
	}
	for _, want := range []string{"bookings:read", "bookings:write", "payments:read"} {
		if !granted[want] {
			t.Errorf("admin missing %q, got %v", want, perms)
		}
	}
}

func TestDemoCredentialsUnset(t *testing.T) {
	t.Setenv("GOVERN_DEMO_USERS", "")

	if _, _, _, ok := demoCredentials(context.Background(), "staff@example.com", "hunter2"); ok {
		t.Fatal("credentials accepted with no accounts configured")
	}
}
