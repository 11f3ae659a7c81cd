package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
)

// DomainError carries a stable machine code plus the HTTP status the
// handlers should answer with. All domain errors are recoverable at the
// caller; none crash the process.
type DomainError struct {
	Code    string
	Status  int
	Message string
}

func (e *DomainError) Error() string { return e.Message }

// Is matches on code so wrapped/derived errors compare against sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

var (
	ErrValidation            = &DomainError{Code: "VALIDATION", Status: fiber.StatusBadRequest, Message: "invalid input"}
	ErrNotFound              = &DomainError{Code: "NOT_FOUND", Status: fiber.StatusNotFound, Message: "resource not found"}
	ErrUnauthorized          = &DomainError{Code: "UNAUTHORIZED", Status: fiber.StatusForbidden, Message: "operation not permitted"}
	ErrCapacityExceeded      = &DomainError{Code: "CAPACITY_EXCEEDED", Status: fiber.StatusConflict, Message: "tournament is full"}
	ErrInsufficientFunds     = &DomainError{Code: "INSUFFICIENT_FUNDS", Status: fiber.StatusPaymentRequired, Message: "insufficient wallet balance"}
	ErrDuplicateRegistration = &DomainError{Code: "DUPLICATE_REGISTRATION", Status: fiber.StatusConflict, Message: "already registered for this tournament"}
	ErrRegistrationClosed    = &DomainError{Code: "REGISTRATION_CLOSED", Status: fiber.StatusForbidden, Message: "registration is closed"}
	ErrAlreadyVerified       = &DomainError{Code: "ALREADY_VERIFIED", Status: fiber.StatusConflict, Message: "report has already been decided"}
)

// Validationf builds a VALIDATION error with a specific message.
func Validationf(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: ErrValidation.Code, Status: ErrValidation.Status, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NOT_FOUND error naming the missing entity.
func NotFoundf(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: ErrNotFound.Code, Status: ErrNotFound.Status, Message: fmt.Sprintf(format, args...)}
}

// respondError renders any error as the uniform {error, code} JSON shape.
// Unknown errors become 500 without leaking internals.
func respondError(c *fiber.Ctx, err error) error {
	var de *DomainError
	if errors.As(err, &de) {
		return c.Status(de.Status).JSON(fiber.Map{"error": de.Message, "code": de.Code})
	}
	log.Printf("❌ [%s %s] internal error: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "INTERNAL"})
}
