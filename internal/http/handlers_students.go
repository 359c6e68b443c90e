package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"prekbill/internal/core"
	"prekbill/internal/session"
	"prekbill/internal/storage"
)

type indexPage struct {
	Username string
	Flashes  []session.Flash
	Students []core.Student
}

// handleIndex lists active students only; inactive and waitlisted students
// never appear here.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	students, err := s.store.ActiveStudents(r.Context())
	if err != nil {
		s.serverError(w, r, "list active students", err)
		return
	}
	s.render(w, r, "students.html", indexPage{
		Username: sess.Username,
		Flashes:  sess.PopFlashes(),
		Students: students,
	})
}

type registerPage struct {
	Username string
	Flashes  []session.Flash
	Statuses []core.EnrollmentStatus
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.render(w, r, "register.html", registerPage{
		Username: sess.Username,
		Flashes:  sess.PopFlashes(),
		Statuses: []core.EnrollmentStatus{core.StatusActive, core.StatusInactive, core.StatusWaitlisted},
	})
}

// handleProcessRegistration creates the parent and student together; the
// store rolls both inserts back if either fails.
func (s *Server) handleProcessRegistration(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseForm(); err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Invalid form submission.", "/register")
		return
	}
	parent := parentFromForm(r.Form)
	student := studentFromForm(r.Form)

	if err := parent.Validate(); err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Parent name is required.", "/register")
		return
	}
	if err := student.Validate(); err != nil {
		if errors.Is(err, core.ErrUnknownStatus) {
			s.flashAndRedirect(w, r, sess, session.FlashError, "Unrecognized enrollment status.", "/register")
		} else {
			s.flashAndRedirect(w, r, sess, session.FlashError, "Student name is required.", "/register")
		}
		return
	}

	if _, err := s.store.RegisterStudent(r.Context(), parent, student); err != nil {
		s.serverError(w, r, "register student", err)
		return
	}
	s.flashAndRedirect(w, r, sess, session.FlashSuccess, "New Student Added Successfully!", "/")
}

type managePage struct {
	Username string
	Flashes  []session.Flash
	Student  core.Student
	Parent   core.Parent
	Payments []core.Payment
	Invoices []core.Invoice
	Total    core.Money
}

// handleManage shows one student with contact info, payment history, the
// computed total paid, and any invoices billed so far.
func (s *Server) handleManage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
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
	invoices, err := s.store.InvoicesByStudent(r.Context(), studentID)
	if err != nil {
		s.serverError(w, r, "list invoices", err)
		return
	}

	s.render(w, r, "manage.html", managePage{
		Username: sess.Username,
		Flashes:  sess.PopFlashes(),
		Student:  student,
		Parent:   parent,
		Payments: payments,
		Invoices: invoices,
		Total:    core.TotalPaid(payments),
	})
}

type editStudentPage struct {
	Username string
	Flashes  []session.Flash
	Student  core.Student
	Parent   core.Parent
	Statuses []core.EnrollmentStatus
}

func (s *Server) handleEditStudent(w http.ResponseWriter, r *http.Request, sess *session.Session) {
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
	s.render(w, r, "edit_student.html", editStudentPage{
		Username: sess.Username,
		Flashes:  sess.PopFlashes(),
		Student:  student,
		Parent:   parent,
		Statuses: []core.EnrollmentStatus{core.StatusActive, core.StatusInactive, core.StatusWaitlisted},
	})
}

// handleUpdateStudent rewrites the student row and its linked parent row in
// one transaction.
func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	studentID, ok := pathID(r, "studentID")
	if !ok {
		s.studentNotFound(w, r, sess)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError, "Invalid form submission.",
			fmt.Sprintf("/edit_student/%d", studentID))
		return
	}
	parent := parentFromForm(r.Form)
	student := studentFromForm(r.Form)
	if parent.Validate() != nil || student.Validate() != nil {
		s.flashAndRedirect(w, r, sess, session.FlashError, "All name fields and a recognized enrollment status are required.",
			fmt.Sprintf("/edit_student/%d", studentID))
		return
	}

	err := s.store.UpdateStudentAndParent(r.Context(), studentID, parent, student)
	if errors.Is(err, storage.ErrNotFound) {
		s.studentNotFound(w, r, sess)
		return
	}
	if err != nil {
		s.serverError(w, r, "update student", err)
		return
	}
	s.flashAndRedirect(w, r, sess, session.FlashSuccess, "Student Information Updated Successfully!",
		fmt.Sprintf("/manage/%d", studentID))
}

func parentFromForm(form url.Values) core.Parent {
	return core.Parent{
		FirstName: strings.TrimSpace(form.Get("parent_first_name")),
		LastName:  strings.TrimSpace(form.Get("parent_last_name")),
		Address:   strings.TrimSpace(form.Get("address")),
		City:      strings.TrimSpace(form.Get("city")),
		State:     strings.TrimSpace(form.Get("state")),
		ZipCode:   strings.TrimSpace(form.Get("zipcode")),
		Email:     strings.TrimSpace(form.Get("email")),
		Phone:     strings.TrimSpace(form.Get("phone")),
	}
}

func studentFromForm(form url.Values) core.Student {
	return core.Student{
		FirstName:        strings.TrimSpace(form.Get("student_first_name")),
		LastName:         strings.TrimSpace(form.Get("student_last_name")),
		EnrollmentStatus: core.EnrollmentStatus(strings.TrimSpace(form.Get("enrollment_status"))),
	}
}
