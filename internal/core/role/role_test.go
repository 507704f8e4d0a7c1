package role

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Role
	}{
		{in: "Admin", want: Admin},
		{in: " manager ", want: Manager},
		{in: "EMPLOYEE", want: Employee},
	}

	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := Parse("owner"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestSetContains(t *testing.T) {
	t.Parallel()

	set := NewSet(Manager, Admin)

	if !set.Contains(Manager) || !set.Contains(Admin) {
		t.Fatalf("expected set to contain Manager and Admin")
	}
	if set.Contains(Employee) {
		t.Fatalf("expected set not to contain Employee")
	}
	if set.Contains(Role(0)) {
		t.Fatalf("zero role must never be a member")
	}
}

func TestRoleString(t *testing.T) {
	t.Parallel()

	for _, r := range []Role{Admin, Manager, Employee} {
		parsed, err := Parse(r.String())
		if err != nil || parsed != r {
			t.Errorf("round trip for %v failed: %v %v", r, parsed, err)
		}
	}
	if Role(42).String() != "" {
		t.Errorf("expected empty name for unknown role")
	}
}
