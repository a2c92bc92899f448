package realtime

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

const heartbeatInterval = 20 * time.Second

// Stream subscribes to rooms and writes messages as server-sent events until
// the client goes away.
func Stream(c *fiber.Ctx, hub *Hub, rooms []string) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	sub := hub.Subscribe(rooms...)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		fmt.Fprintf(w, "event: ready\ndata: %s\n\n", mustJSON(rooms))
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				if err := WriteEvent(w, msg); err != nil {
					log.Printf("SSE write error (%v): %v", rooms, err)
					return
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-ticker.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

// WriteEvent encodes one message in SSE framing.
func WriteEvent(w *bufio.Writer, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
	return err
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
