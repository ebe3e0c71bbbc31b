package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"formafit/trainer-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string            `json:"error"`
	Code  service.ErrorCode `json:"code"`
}

// statusByCode maps service error codes to HTTP statuses.
var statusByCode = map[service.ErrorCode]int{
	service.CodeValidation:         http.StatusBadRequest,
	service.CodeNotFound:           http.StatusNotFound,
	service.CodeConflict:           http.StatusConflict,
	service.CodeUnauthorized:       http.StatusUnauthorized,
	service.CodeInvalidTransition:  http.StatusUnprocessableEntity,
	service.CodeAttendanceExists:   http.StatusConflict,
	service.CodeDuplicateInvoice:   http.StatusConflict,
	service.CodeDuplicatePeriod:    http.StatusConflict,
	service.CodeReportNotReady:     http.StatusConflict,
	service.CodeStorage:            http.StatusBadGateway,
	service.CodeDeliveryFailed:     http.StatusBadGateway,
	service.CodeEnrollmentRollback: http.StatusInternalServerError,
	service.CodeInternal:           http.StatusInternalServerError,
}

// Codes whose error text is written for the user; the rest get the
// generic message from the service table.
var detailedCodes = map[service.ErrorCode]bool{
	service.CodeValidation:        true,
	service.CodeNotFound:          true,
	service.CodeConflict:          true,
	service.CodeInvalidTransition: true,
	service.CodeAttendanceExists:  true,
	service.CodeDuplicateInvoice:  true,
	service.CodeDuplicatePeriod:   true,
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, status int, code service.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

// respondError classifies a service error and writes it.
func respondError(c *gin.Context, err error) {
	code := service.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := service.Message(code)
	if detailedCodes[code] {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError || code == service.CodeStorage || code == service.CodeDeliveryFailed {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	abortWithError(c, status, code, message)
}

// bindJSON decodes and validates the request body, answering 400 itself
// on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, http.StatusBadRequest, service.CodeValidation, bindingMessage(err))
		return false
	}
	return true
}

// bindQuery is bindJSON for query strings.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		abortWithError(c, http.StatusBadRequest, service.CodeValidation, bindingMessage(err))
		return false
	}
	return true
}

var tagMessages = map[string]string{
	"required": "is required",
	"email":    "is not a valid address",
	"br_phone": "must look like (11) 99999-9999",
	"hhmm":     "must be a time in HH:MM format",
	"datetime": "must be a date in YYYY-MM-DD format",
	"objectid": "is not a valid id",
	"oneof":    "must be one of: ",
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body: " + err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		switch {
		case !ok:
			msg = fmt.Sprintf("failed the '%s' rule", fe.Tag())
			if fe.Param() != "" {
				msg = fmt.Sprintf("failed the '%s=%s' rule", fe.Tag(), fe.Param())
			}
		case fe.Tag() == "oneof":
			msg += strings.ReplaceAll(fe.Param(), " ", ", ")
		}
		parts = append(parts, fe.Field()+": "+msg)
	}
	return strings.Join(parts, "; ")
}
