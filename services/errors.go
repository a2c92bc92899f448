package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func notFound(what string) error {
	return fiber.NewError(fiber.StatusNotFound, what+" not found")
}

func badRequest(format string, args ...any) error {
	return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...any) error {
	return fiber.NewError(fiber.StatusConflict, fmt.Sprintf(format, args...))
}

// IsDuplicateKey reports a unique-constraint violation from any supported driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// lookupErr maps a First/Take error to 404 or a wrapped DB error.
func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// dbErr passes *fiber.Error through, maps duplicates to 409 and wraps the rest.
func dbErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return err
	}
	if IsDuplicateKey(err) {
		return conflict("%s: record already exists", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
