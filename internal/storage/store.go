// Package storage implements the persistence store over SQLite.
//
// Every multi-statement sequence (registration, student/parent update) runs
// inside one transaction so a failure mid-sequence leaves no partial writes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"prekbill/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an id does not resolve to a row. Handlers
// translate it into a flash message and a redirect, never a raw error page.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, runs migrations, and returns a
// ready store.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on any error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateUser inserts a login user with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

// UserByUsername fetches a user row; ErrNotFound when the username is unknown.
func (s *Store) UserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password FROM users WHERE username = ?", username).
		Scan(&u.ID, &u.Username, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// UserByID fetches a user row by id.
func (s *Store) UserByID(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Username, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ActiveStudents lists students with enrollment status Active, the only
// filter the index view ever applies.
func (s *Store) ActiveStudents(ctx context.Context) ([]core.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, parent_id, first_name, last_name, enrollment_status
		 FROM students WHERE enrollment_status = ? ORDER BY last_name, first_name`,
		string(core.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	defer rows.Close()

	var students []core.Student
	for rows.Next() {
		var st core.Student
		if err := rows.Scan(&st.ID, &st.ParentID, &st.FirstName, &st.LastName, &st.EnrollmentStatus); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// StudentByID fetches one student; ErrNotFound when the id is unresolved.
func (s *Store) StudentByID(ctx context.Context, id int64) (core.Student, error) {
	var st core.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT student_id, parent_id, first_name, last_name, enrollment_status
		 FROM students WHERE student_id = ?`, id).
		Scan(&st.ID, &st.ParentID, &st.FirstName, &st.LastName, &st.EnrollmentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Student{}, ErrNotFound
	}
	if err != nil {
		return core.Student{}, fmt.Errorf("get student by id: %w", err)
	}
	return st, nil
}

// ParentByID fetches one parent row.
func (s *Store) ParentByID(ctx context.Context, id int64) (core.Parent, error) {
	var p core.Parent
	err := s.db.QueryRowContext(ctx,
		`SELECT parent_id, first_name, last_name, address, city, state, zip_code, email, phone
		 FROM parents WHERE parent_id = ?`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.Address, &p.City, &p.State, &p.ZipCode, &p.Email, &p.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Parent{}, ErrNotFound
	}
	if err != nil {
		return core.Parent{}, fmt.Errorf("get parent by id: %w", err)
	}
	return p, nil
}

// StudentWithParent resolves a student together with its linked parent.
func (s *Store) StudentWithParent(ctx context.Context, studentID int64) (core.Student, core.Parent, error) {
	st, err := s.StudentByID(ctx, studentID)
	if err != nil {
		return core.Student{}, core.Parent{}, err
	}
	p, err := s.ParentByID(ctx, st.ParentID)
	if err != nil {
		return core.Student{}, core.Parent{}, err
	}
	return st, p, nil
}

// RegisterStudent creates the parent and the student referencing it in one
// transaction; the parent insert is rolled back if the student insert fails.
func (s *Store) RegisterStudent(ctx context.Context, parent core.Parent, student core.Student) (int64, error) {
	var studentID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO parents (first_name, last_name, address, city, state, zip_code, email, phone)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			parent.FirstName, parent.LastName, parent.Address, parent.City,
			parent.State, parent.ZipCode, parent.Email, parent.Phone)
		if err != nil {
			return fmt.Errorf("insert parent: %w", err)
		}
		parentID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("parent insert id: %w", err)
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO students (parent_id, first_name, last_name, enrollment_status)
			 VALUES (?, ?, ?, ?)`,
			parentID, student.FirstName, student.LastName, string(student.EnrollmentStatus))
		if err != nil {
			return fmt.Errorf("insert student: %w", err)
		}
		studentID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("student insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Student registered",
		"student_id", studentID,
		"student", student.FullName(),
		"parent", parent.FullName())
	return studentID, nil
}

// UpdateStudentAndParent updates the student row and its linked parent row in
// the same transaction. ErrNotFound when studentID does not resolve.
func (s *Store) UpdateStudentAndParent(ctx context.Context, studentID int64, parent core.Parent, student core.Student) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var parentID int64
		err := tx.QueryRowContext(ctx,
			"SELECT parent_id FROM students WHERE student_id = ?", studentID).Scan(&parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve student: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE parents SET first_name = ?, last_name = ?, address = ?, city = ?,
			 state = ?, zip_code = ?, email = ?, phone = ? WHERE parent_id = ?`,
			parent.FirstName, parent.LastName, parent.Address, parent.City,
			parent.State, parent.ZipCode, parent.Email, parent.Phone, parentID); err != nil {
			return fmt.Errorf("update parent: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE students SET first_name = ?, last_name = ?, enrollment_status = ?
			 WHERE student_id = ?`,
			student.FirstName, student.LastName, string(student.EnrollmentStatus), studentID); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		return nil
	})
}

// PaymentsByStudent lists all payments for one student, oldest first.
func (s *Store) PaymentsByStudent(ctx context.Context, studentID int64) ([]core.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payment_id, student_id, amount_cents, date_paid
		 FROM payments WHERE student_id = ? ORDER BY payment_id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		var p core.Payment
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Amount.Cents, &p.DatePaid); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// PaymentByID fetches one payment row.
func (s *Store) PaymentByID(ctx context.Context, id int64) (core.Payment, error) {
	var p core.Payment
	err := s.db.QueryRowContext(ctx,
		"SELECT payment_id, student_id, amount_cents, date_paid FROM payments WHERE payment_id = ?", id).
		Scan(&p.ID, &p.StudentID, &p.Amount.Cents, &p.DatePaid)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, ErrNotFound
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment by id: %w", err)
	}
	return p, nil
}

// CreatePayment inserts a payment and returns its id.
func (s *Store) CreatePayment(ctx context.Context, p core.Payment) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO payments (student_id, amount_cents, date_paid) VALUES (?, ?, ?)",
		p.StudentID, p.Amount.Cents, p.DatePaid)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("payment insert id: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved",
		"payment_id", id,
		"student_id", p.StudentID,
		"amount_cents", p.Amount.Cents)
	return id, nil
}

// UpdatePayment rewrites amount and date. The update is scoped to both the
// payment id and the owning student id, so a mismatched pair changes nothing.
func (s *Store) UpdatePayment(ctx context.Context, paymentID, studentID int64, amount core.Money, datePaid string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE payments SET amount_cents = ?, date_paid = ? WHERE payment_id = ? AND student_id = ?",
		amount.Cents, datePaid, paymentID, studentID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePayment removes a payment. Deleting an absent or mismatched pair is
// an idempotent no-op; invoices are never touched.
func (s *Store) DeletePayment(ctx context.Context, paymentID, studentID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM payments WHERE payment_id = ? AND student_id = ?", paymentID, studentID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.InfoContext(ctx, "Payment deleted", "payment_id", paymentID, "student_id", studentID)
	}
	return nil
}

// CreateInvoice inserts an invoice and returns it with the generated id
// taken straight from the insert, never from a most-recent-row lookup.
func (s *Store) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO invoices (student_id, amount_cents, due_date) VALUES (?, ?, ?)",
		inv.StudentID, inv.AmountBilled.Cents, inv.DueDate)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Invoice{}, fmt.Errorf("invoice insert id: %w", err)
	}
	inv.ID = id

	slog.InfoContext(ctx, "Invoice generated",
		"invoice_id", id,
		"student_id", inv.StudentID,
		"amount_cents", inv.AmountBilled.Cents,
		"due_date", inv.DueDate)
	return inv, nil
}

// InvoicesByStudent lists invoices for one student, newest first.
func (s *Store) InvoicesByStudent(ctx context.Context, studentID int64) ([]core.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT invoice_id, student_id, amount_cents, due_date
		 FROM invoices WHERE student_id = ? ORDER BY invoice_id DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		var inv core.Invoice
		if err := rows.Scan(&inv.ID, &inv.StudentID, &inv.AmountBilled.Cents, &inv.DueDate); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
