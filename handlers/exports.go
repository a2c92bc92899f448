package handlers

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"fest-event-system/exports"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
)

// sendTable renders t in the format named by ?format= (csv, html or pdf; csv by default).
func sendTable(c *fiber.Ctx, t exports.Table) error {
	format := strings.ToLower(c.Query("format", "csv"))
	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case "csv":
		err = exports.WriteCSV(&buf, t)
		contentType = "text/csv; charset=utf-8"
	case "html":
		err = exports.WriteHTML(&buf, t)
		contentType = fiber.MIMETextHTMLCharsetUTF8
	case "pdf":
		err = exports.WritePDF(&buf, t)
		contentType = "application/pdf"
	default:
		return fiber.NewError(fiber.StatusBadRequest, "format must be csv, html or pdf")
	}
	if err != nil {
		return fmt.Errorf("failed to render %s export: %w", format, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	if format != "html" {
		name := fmt.Sprintf("%s-%s.%s", slug.Make(t.Title), time.Now().Format("20060102"), format)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	}
	return c.Send(buf.Bytes())
}

func (s *Services) exportParticipants(c *fiber.Ctx) error {
	t, err := s.Exports.Participants(c.Query("status"), c.Query("sub_event_id"))
	if err != nil {
		return err
	}
	return sendTable(c, t)
}

func (s *Services) exportGroups(c *fiber.Ctx) error {
	t, err := s.Exports.Groups(c.Params("id"))
	if err != nil {
		return err
	}
	return sendTable(c, t)
}

func (s *Services) exportAttendance(c *fiber.Ctx) error {
	subEventID := c.Query("sub_event_id")
	if subEventID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sub_event_id is required")
	}
	t, err := s.Exports.Attendance(subEventID, c.Query("round_id"))
	if err != nil {
		return err
	}
	return sendTable(c, t)
}

func (s *Services) syncSheets(c *fiber.Ctx) error {
	if s.Sheets == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Google Sheets sync is not configured")
	}
	n, err := s.Sheets.SyncOnce(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return okMessage(c, "Sheet synced", fiber.Map{"rows": n})
}

func (s *Services) sheetsStatus(c *fiber.Ctx) error {
	if s.Sheets == nil {
		return ok(c, fiber.Map{"enabled": false})
	}
	at, rows := s.Sheets.LastSync()
	data := fiber.Map{"enabled": true, "rows": rows}
	if !at.IsZero() {
		data["last_sync"] = at
	}
	return ok(c, data)
}
