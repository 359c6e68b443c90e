package core

import "testing"

func TestEnrollmentStatusValid(t *testing.T) {
	cases := []struct {
		status EnrollmentStatus
		ok     bool
	}{
		{StatusActive, true},
		{StatusInactive, true},
		{StatusWaitlisted, true},
		{"Expelled", false},
		{"active", false}, // case sensitive
		{"", false},
	}
	for _, tc := range cases {
		if got := tc.status.Valid(); got != tc.ok {
			t.Fatalf("Valid(%q) = %v, want %v", tc.status, got, tc.ok)
		}
	}
}

func TestStudentValidate(t *testing.T) {
	s := Student{FirstName: "Ada", LastName: "Lovelace", EnrollmentStatus: StatusActive}
	if err := s.Validate(); err != nil {
		t.Fatalf("valid student rejected: %v", err)
	}

	s.EnrollmentStatus = "Unknown"
	if err := s.Validate(); err != ErrUnknownStatus {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}

	s.EnrollmentStatus = StatusActive
	s.FirstName = "  "
	if err := s.Validate(); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestParentValidate(t *testing.T) {
	p := Parent{FirstName: "Grace", LastName: "Hopper"}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid parent rejected: %v", err)
	}
	p.LastName = ""
	if err := p.Validate(); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestTotalPaid(t *testing.T) {
	if got := TotalPaid(nil); got.Cents != 0 {
		t.Fatalf("empty total = %d, want 0", got.Cents)
	}
	payments := []Payment{
		{Amount: Money{Cents: 15050}},
		{Amount: Money{Cents: 2500}},
		{Amount: Money{Cents: 1}},
	}
	if got := TotalPaid(payments); got.Cents != 17551 {
		t.Fatalf("total = %d, want 17551", got.Cents)
	}
	if got := TotalPaid(nil).String(); got != "0.00" {
		t.Fatalf("zero total renders %q, want \"0.00\"", got)
	}
}
