// Package apperr defines the error taxonomy shared by services and the HTTP
// boundary. Services return these errors (possibly wrapped); handlers convert
// them into a JSON {"error": message} body through Respond.
package apperr

import (
	"errors"   // Error classification
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// Kind classifies an error for the HTTP boundary
type Kind int

const (
	KindInternal       Kind = iota // Unexpected failure
	KindValidation                 // Malformed input
	KindAuthentication             // Missing or invalid session token
	KindAntiForgery                // Missing or invalid anti-forgery token
	KindAuthorization              // Role or ownership mismatch
	KindNotFound                   // Entity absent
	KindUpstream                   // Payment processor or catalog source failure
	KindPersistence                // Store failure
)

// Error is a classified application error
type Error struct {
	Kind    Kind   // Error class
	Message string // Client facing message
	Status  int    // Explicit HTTP status, zero derives it from Kind
	Err     error  // Wrapped cause, never sent to the client
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by kind and message so that wrapped copies
// produced by Wrap still satisfy errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause to a sentinel, keeping its kind and message
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Status: sentinel.Status, Err: cause}
}

// Upstream wraps an external collaborator failure
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: cause}
}

// Persistence wraps a store failure
func Persistence(message string, cause error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: cause}
}

// Validation builds a validation error with a custom message
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

var (
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Message: "Invalid email or password", Status: http.StatusBadRequest}
	ErrMissingToken       = New(KindAuthentication, "Access denied, token missing")
	ErrInvalidToken       = New(KindAuthentication, "Invalid token")

	ErrInvalidAntiForgeryToken = New(KindAntiForgery, "Invalid CSRF token")

	ErrForbidden = New(KindAuthorization, "Forbidden")

	ErrNotFound        = New(KindNotFound, "Not found")
	ErrUserNotFound    = New(KindNotFound, "User not found")
	ErrProductNotFound = New(KindNotFound, "Product not found")
	ErrInvoiceNotFound = New(KindNotFound, "Invoice not found")
	ErrNoMatches       = New(KindNotFound, "No products found for the query")

	ErrInvalidRating   = New(KindValidation, "Invalid rating value")
	ErrEmptyCart       = New(KindValidation, "The \"scanCodes\" parameter is required.")
	ErrDuplicateEmail  = New(KindValidation, "Email is already taken")
	ErrDuplicateUser   = New(KindValidation, "Username is already taken")
	ErrDuplicateScan   = New(KindValidation, "Product already exists")
	ErrProtectedAdmin  = New(KindValidation, "Cannot delete default admin user")
	ErrInvalidRequest  = New(KindValidation, "Invalid request")
	ErrEmptyUpdateBody = New(KindValidation, "Request body is empty")
)

// KindOf returns the kind of err, KindInternal when unclassified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps an error to its HTTP status code
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAntiForgery, KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client facing message; internals never leak
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "Internal error"
	}
	return e.Message
}

// Respond aborts the request with the JSON error body for err
func Respond(c *gin.Context, err error) {
	status := Status(err)
	fields := logrus.Fields{
		"method": c.Request.Method, // HTTP method
		"path":   c.FullPath(),     // Route pattern
		"status": status,           // Response status
		"error":  err.Error(),      // Full error, including causes
	}
	if userID, ok := c.Get("userID"); ok {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		logrus.WithFields(fields).Error("Request failed")
	} else {
		logrus.WithFields(fields).Warn("Request rejected")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": Message(err)})
}
