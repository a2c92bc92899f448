package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Total   *int64 `json:"total,omitempty"`
	Stats   any    `json:"stats,omitempty"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(envelope{Success: true, Data: data})
}

func okMessage(c *fiber.Ctx, message string, data any) error {
	return c.JSON(envelope{Success: true, Message: message, Data: data})
}

func created(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(envelope{Success: true, Message: message, Data: data})
}

// list responds with a slice and its length. total is the unpaginated count, omitted when negative.
func list[T any](c *fiber.Ctx, items []T, total int64) error {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	env := envelope{Success: true, Data: items, Count: &n}
	if total >= 0 {
		env.Total = &total
	}
	return c.JSON(env)
}

func withStats(c *fiber.Ctx, data, stats any) error {
	return c.JSON(envelope{Success: true, Data: data, Stats: stats})
}

// ErrorHandler renders every returned error as {success:false, message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(envelope{Success: false, Message: err.Error()})
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
