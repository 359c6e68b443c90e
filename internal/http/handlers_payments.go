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

type paymentFormPage struct {
	Username string
	Flashes  []session.Flash
	Student  core.Student
	Payment  core.Payment
}

func (s *Server) handleEnterPayment(w http.ResponseWriter, r *http.Request, sess *session.Session) {
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
	s.render(w, r, "enter_payment.html", paymentFormPage{
		Username: sess.Username,
		Flashes:  sess.PopFlashes(),
		Student:  student,
	})
}

// handleProcessPayment validates the amount and records the payment. An
// unparsable amount writes nothing and sends the user back to the form.
func (s *Server) handleProcessPayment(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Invalid form submission.",
			fmt.Sprintf("/enter_payment/%d", studentID))
		return
	}

	amount, err := core.ParseAmount(r.Form.Get("payment_amount"))
	if err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError,
			"Invalid amount entered. Please enter a valid number.",
			fmt.Sprintf("/enter_payment/%d", studentID))
		return
	}

	if _, err := s.store.StudentByID(r.Context(), studentID); errors.Is(err, storage.ErrNotFound) {
		s.studentNotFound(w, r, sess)
		return
	} else if err != nil {
		s.serverError(w, r, "load student", err)
		return
	}

	_, err = s.store.CreatePayment(r.Context(), core.Payment{
		StudentID: studentID,
		Amount:    amount,
		DatePaid:  strings.TrimSpace(r.Form.Get("payment_date")),
	})
	if err != nil {
		s.serverError(w, r, "create payment", err)
		return
	}
	s.flashAndRedirect(w, r, sess, session.FlashSuccess, "New Payment Added Successfully!",
		fmt.Sprintf("/manage/%d", studentID))
}

// handleDeletePayment removes a payment permanently. The delete is scoped to
// the student in the path, so a mismatched pair changes nothing; invoices are
// never affected.
func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	paymentID, ok := pathID(r, "paymentID")
	if !ok {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Payment not found.",
			fmt.Sprintf("/manage/%d", studentID))
		return
	}
	if err := s.store.DeletePayment(r.Context(), paymentID, studentID); err != nil {
		s.serverError(w, r, "delete payment", err)
		return
	}
	s.flashAndRedirect(w, r, sess, session.FlashSuccess, "Payment Deleted Successfully!",
		fmt.Sprintf("/manage/%d", studentID))
}

func (s *Server) handleEditPayment(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	paymentID, ok := pathID(r, "paymentID")
	if !ok {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Payment not found.",
			fmt.Sprintf("/manage/%d", studentID))
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
	payment, err := s.store.PaymentByID(r.Context(), paymentID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && payment.StudentID != studentID) {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Payment not found.",
			fmt.Sprintf("/manage/%d", studentID))
		return
	}
	if err != nil {
		s.serverError(w, r, "load payment", err)
		return
	}

	s.render(w, r, "edit_payment.html", paymentFormPage{
		Username: sess.Username,
		Flashes:  sess.PopFlashes(),
		Student:  student,
		Payment:  payment,
	})
}

// handleUpdatePayment applies the same validation as payment entry, then
// rewrites the payment scoped to both path ids.
func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	paymentID, ok := pathID(r, "paymentID")
	if !ok {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Payment not found.",
			fmt.Sprintf("/manage/%d", studentID))
		return
	}
	if err := r.ParseForm(); err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Invalid form submission.",
			fmt.Sprintf("/edit_payment/%d/%d", studentID, paymentID))
		return
	}

	amount, err := core.ParseAmount(r.Form.Get("payment_amount"))
	if err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError,
			"Invalid amount entered. Please enter a valid number.",
			fmt.Sprintf("/edit_payment/%d/%d", studentID, paymentID))
		return
	}

	err = s.store.UpdatePayment(r.Context(), paymentID, studentID, amount,
		strings.TrimSpace(r.Form.Get("payment_date")))
	if errors.Is(err, storage.ErrNotFound) {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Payment not found.",
			fmt.Sprintf("/manage/%d", studentID))
		return
	}
	if err != nil {
		s.serverError(w, r, "update payment", err)
		return
	}
	s.flashAndRedirect(w, r, sess, session.FlashSuccess, "Payment Updated Successfully!",
		fmt.Sprintf("/manage/%d", studentID))
}
