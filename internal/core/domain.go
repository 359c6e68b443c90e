package core

import (
	"errors"
	"strings"
)

const (
	StatusActive     EnrollmentStatus = "Active"
	StatusInactive   EnrollmentStatus = "Inactive"
	StatusWaitlisted EnrollmentStatus = "Waitlisted"
)

type (
	// EnrollmentStatus controls whether a student appears on the index listing.
	EnrollmentStatus string

	// User is a credential row for the single shared login tier.
	User struct {
		ID       int64
		Username string
		Password string // bcrypt hash
	}

	// Parent is the billing contact owning zero or more students.
	Parent struct {
		ID        int64
		FirstName string
		LastName  string
		Address   string
		City      string
		State     string
		ZipCode   string
		Email     string
		Phone     string
	}

	// Student is owned by exactly one parent.
	Student struct {
		ID               int64
		ParentID         int64
		FirstName        string
		LastName         string
		EnrollmentStatus EnrollmentStatus
	}

	Payment struct {
		ID        int64
		StudentID int64
		Amount    Money
		DatePaid  string
	}

	// Invoice rows are append-only; no edit or delete operation exists.
	Invoice struct {
		ID           int64
		StudentID    int64
		AmountBilled Money
		DueDate      string
	}

	// InvoiceSnapshot is a denormalized copy of a freshly generated invoice,
	// staged per session between generation and display.
	InvoiceSnapshot struct {
		InvoiceID int64
		DueDate   string
		Student   Student
		Parent    Parent
		Amount    Money
	}

	// StatementSnapshot is a student's payment history staged per session.
	StatementSnapshot struct {
		Student  Student
		Parent   Parent
		Payments []Payment
		Total    Money
	}
)

var (
	ErrUnknownStatus = errors.New("unknown enrollment status")
	ErrEmptyName     = errors.New("empty name")
)

// Valid reports whether s belongs to the recognized status set.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusWaitlisted:
		return true
	}
	return false
}

func (p Parent) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return ErrEmptyName
	}
	return nil
}

func (s Student) Validate() error {
	if strings.TrimSpace(s.FirstName) == "" || strings.TrimSpace(s.LastName) == "" {
		return ErrEmptyName
	}
	if !s.EnrollmentStatus.Valid() {
		return ErrUnknownStatus
	}
	return nil
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (p Parent) FullName() string {
	return p.FirstName + " " + p.LastName
}

// TotalPaid sums the amounts of all payments; zero when there are none.
func TotalPaid(payments []Payment) Money {
	var cents int64
	for _, p := range payments {
		cents += p.Amount.Cents
	}
	return Money{Cents: cents}
}
