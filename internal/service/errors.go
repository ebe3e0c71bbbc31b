package service

import (
	"errors"
	"fmt"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"
)

// --- Error Definitions shared across services ---
var (
	ErrValidation       = errors.New("validation failed")
	ErrStudentNotFound  = newNotFound("student")
	ErrStudentEmailUsed = errors.New("a student with this email already exists")
	ErrStorageFailure   = errors.New("file storage operation failed")
)

// ValidationError reports a rejected input field. It matches ErrValidation
// with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ErrorCode is the stable, machine-readable identifier sent to clients.
type ErrorCode string

const (
	CodeInternal           ErrorCode = "internal"
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeInvalidTransition  ErrorCode = "invalid_transition"
	CodeAttendanceExists   ErrorCode = "attendance_exists"
	CodeDuplicateInvoice   ErrorCode = "duplicate_invoice"
	CodeDuplicatePeriod    ErrorCode = "duplicate_period"
	CodeStorage            ErrorCode = "storage"
	CodeReportNotReady     ErrorCode = "report_not_ready"
	CodeDeliveryFailed     ErrorCode = "delivery_failed"
	CodeEnrollmentRollback ErrorCode = "enrollment_failed"
)

// codeMessages is the user-facing text for each code. Validation and
// conflict errors carry their own message instead.
var codeMessages = map[ErrorCode]string{
	CodeInternal:           "An unexpected error occurred. Please try again.",
	CodeValidation:         "Some fields are invalid.",
	CodeNotFound:           "The requested record was not found.",
	CodeConflict:           "The record conflicts with an existing one.",
	CodeUnauthorized:       "Invalid email or password.",
	CodeInvalidTransition:  "This status change is not allowed.",
	CodeAttendanceExists:   "Attendance was already registered for this session.",
	CodeDuplicateInvoice:   "An invoice already exists for this student and period.",
	CodeDuplicatePeriod:    "A record already exists for this student and date.",
	CodeStorage:            "The file could not be processed. Please try again.",
	CodeReportNotReady:     "The report is not ready yet.",
	CodeDeliveryFailed:     "The email could not be sent.",
	CodeEnrollmentRollback: "The enrollment could not be completed and was undone.",
}

// Message returns the user-facing text for code.
func Message(code ErrorCode) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return codeMessages[CodeInternal]
}

// codeTable is checked in order with errors.Is; the first match wins.
var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrValidation, CodeValidation},
	{domain.ErrInvalidTimeOfDay, CodeValidation},
	{domain.ErrEndNotAfterStart, CodeValidation},
	{domain.ErrCrossesMidnight, CodeValidation},
	{domain.ErrInvalidWeekday, CodeValidation},
	{domain.ErrInvalidDueDay, CodeValidation},
	{domain.ErrNegativeAmount, CodeValidation},
	{ErrAuthenticationFailed, CodeUnauthorized},
	{ErrUserAlreadyExists, CodeConflict},
	{ErrStudentEmailUsed, CodeConflict},
	{ErrSlotExists, CodeConflict},
	{ErrPlanInUse, CodeConflict},
	{ErrReportTypeExists, CodeConflict},
	{ErrReportTypeInactive, CodeValidation},
	{ErrContractInactive, CodeValidation},
	{ErrPlanInactive, CodeValidation},
	{ErrMeasurementExists, CodeDuplicatePeriod},
	{ErrDuplicateInvoice, CodeDuplicateInvoice},
	{ErrAttendanceExists, CodeAttendanceExists},
	{domain.ErrInvalidStatusTransition, CodeInvalidTransition},
	{ErrEnrollmentFailed, CodeEnrollmentRollback},
	{ErrReportNotReady, CodeReportNotReady},
	{ErrEmailDelivery, CodeDeliveryFailed},
	{ErrStorageFailure, CodeStorage},
	{ErrUploadNotFound, CodeValidation},
	{ErrStudentNotFound, CodeNotFound},
	{ErrNotFound, CodeNotFound},
	{repository.ErrNotFound, CodeNotFound},
	{repository.ErrDuplicate, CodeConflict},
}

// CodeOf classifies err. Unknown errors are internal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

// ErrNotFound is the generic "no such record for this trainer" error.
var ErrNotFound = errors.New("record not found")

// notFound maps repository.ErrNotFound to the given service error.
func notFound(err error, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}

// notFoundError names the missing record and matches ErrNotFound.
type notFoundError struct{ what string }

func (e *notFoundError) Error() string { return e.what + " not found" }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

func newNotFound(what string) error { return &notFoundError{what: what} }
