// Package exports renders participant, group and attendance data as CSV,
// HTML, PDF and Google Sheets.
package exports

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/utils"
)

// Table is the format-independent shape every exporter consumes.
type Table struct {
	Title       string
	Headers     []string
	Rows        [][]string
	GeneratedAt time.Time
}

func chest(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

// subEventList names the confirmed sub-events of p, sorted.
func subEventList(p *models.Participant, names map[string]string) string {
	var out []string
	for _, id := range p.RegisteredSubEventIDs() {
		if n, ok := names[id]; ok {
			out = append(out, n)
		} else {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// ParticipantsTable lists participants by chest number. names maps sub-event
// id to display name; Events must be preloaded.
func ParticipantsTable(title string, participants []models.Participant, names map[string]string) Table {
	t := Table{
		Title: title,
		Headers: []string{
			"Chest No", "Name", "Email", "Phone", "Student ID", "College", "Department", "Year",
			"Status", "Availability", "Sub-events", "Amount Paid", "Transaction ID", "Registered At",
		},
		GeneratedAt: time.Now(),
	}
	for i := range participants {
		p := &participants[i]
		t.Rows = append(t.Rows, []string{
			chest(p.ChestNumber),
			p.Name,
			p.Email,
			p.Phone,
			p.StudentID,
			p.College,
			p.Department,
			p.Year,
			p.Status,
			p.Availability,
			subEventList(p, names),
			utils.FormatINR(p.AmountPaid),
			p.TransactionID,
			p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return t
}

// GroupsTable prints one row per group member. Members.Participant must be preloaded.
func GroupsTable(title string, groups []models.Group) Table {
	t := Table{
		Title:       title,
		Headers:     []string{"Group", "Chest No", "Name", "College", "Venue", "Status", "Average %"},
		GeneratedAt: time.Now(),
	}
	for _, g := range groups {
		for _, m := range g.Members {
			row := []string{g.Name, "", m.ParticipantID, "", g.Venue, g.EvaluationStatus, fmt.Sprintf("%.2f", g.AverageScore)}
			if m.Participant != nil {
				row[1] = chest(m.Participant.ChestNumber)
				row[2] = m.Participant.Name
				row[3] = m.Participant.College
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// AttendanceTable lists attendance marks. Participant must be preloaded.
func AttendanceTable(title string, rows []models.Attendance) Table {
	t := Table{
		Title:       title,
		Headers:     []string{"Chest No", "Name", "Present", "Marked By", "Marked At"},
		GeneratedAt: time.Now(),
	}
	for _, a := range rows {
		present := "No"
		if a.Present {
			present = "Yes"
		}
		row := []string{"", a.ParticipantID, present, a.MarkedBy, a.MarkedAt.Format("2006-01-02 15:04")}
		if a.Participant != nil {
			row[0] = chest(a.Participant.ChestNumber)
			row[1] = a.Participant.Name
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
