package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"prekbill/internal/core"
	"prekbill/internal/session"
	"prekbill/internal/storage"
)

type billStudentPage struct {
	Username string
	Flashes  []session.Flash
	Student  core.Student
}

func (s *Server) handleBillStudent(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	student, err := s.store.StudentByID(r.Context(), studentID)
	if errors.Is(err, storage.ErrNotFound) {
		s.studentNotFound(w, r, sess)
		return
	}
	if err != nil {
		s.serverError(w, r, "load student", err)
		return
	}
	s.render(w, r, "bill_student.html", billStudentPage{
		Username: sess.Username,
		Flashes:  sess.PopFlashes(),
		Student:  student,
	})
}

// handleGenerateInvoice inserts the invoice, assembles a snapshot from the
// generated id, and stages it on the acting session for /show_invoice.
func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Invalid form submission.",
			fmt.Sprintf("/bill_student/%d", studentID))
		return
	}

	amount, err := core.ParseAmount(r.Form.Get("bill_amount"))
	if err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError,
			"Invalid amount entered. Please enter a valid number.",
			fmt.Sprintf("/bill_student/%d", studentID))
		return
	}
	dueDate := strings.TrimSpace(r.Form.Get("due_date"))

	student, parent, err := s.store.StudentWithParent(r.Context(), studentID)
	if errors.Is(err, storage.ErrNotFound) {
		s.studentNotFound(w, r, sess)
		return
	}
	if err != nil {
		s.serverError(w, r, "load student", err)
		return
	}

	invoice, err := s.store.CreateInvoice(r.Context(), core.Invoice{
		StudentID:    studentID,
		AmountBilled: amount,
		DueDate:      dueDate,
	})
	if err != nil {
		s.serverError(w, r, "create invoice", err)
		return
	}

	sess.StageInvoice(core.InvoiceSnapshot{
		InvoiceID: invoice.ID,
		DueDate:   dueDate,
		Student:   student,
		Parent:    parent,
		Amount:    amount,
	})
	http.Redirect(w, r, "/show_invoice", http.StatusSeeOther)
}

type invoicePage struct {
	Username string
	Invoice  core.InvoiceSnapshot
}

// handleShowInvoice renders the staged snapshot without clearing it; with
// nothing staged it falls back to the index.
func (s *Server) handleShowInvoice(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	snap, ok := sess.StagedInvoice()
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "invoice.html", invoicePage{Username: sess.Username, Invoice: snap})
}

// handleGenerateStatement assembles the student's payment history snapshot
// and stages it on the acting session for /show_statement.
func (s *Server) handleGenerateStatement(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	student, parent, err := s.store.StudentWithParent(r.Context(), studentID)
	if errors.Is(err, storage.ErrNotFound) {
		s.studentNotFound(w, r, sess)
		return
	}
	if err != nil {
		s.serverError(w, r, "load student", err)
		return
	}
	payments, err := s.store.PaymentsByStudent(r.Context(), studentID)
	if err != nil {
		s.serverError(w, r, "list payments", err)
		return
	}

	sess.StageStatement(core.StatementSnapshot{
		Student:  student,
		Parent:   parent,
		Payments: payments,
		Total:    core.TotalPaid(payments),
	})
	http.Redirect(w, r, "/show_statement", http.StatusSeeOther)
}

type statementPage struct {
	Username  string
	Statement core.StatementSnapshot
}

// handleShowStatement mirrors handleShowInvoice's soft-fail contract.
func (s *Server) handleShowStatement(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	snap, ok := sess.StagedStatement()
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "statement.html", statementPage{Username: sess.Username, Statement: snap})
}
