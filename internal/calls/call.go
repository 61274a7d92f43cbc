package calls

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// Status is the outcome of an inbound call.
type Status string

const (
	StatusAnswered  Status = "answered"
	StatusMissed    Status = "missed"
	StatusVoicemail Status = "voicemail"
)

// ParseStatus returns the status filter; empty or "all" means no filter.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusAnswered, StatusMissed, StatusVoicemail:
		return s, true
	default:
		return "", false
	}
}

// Call is one entry in the call log handled on the customer's behalf.
type Call struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	CallerNumber string    `json:"callerNumber"`
	CallerName   string    `json:"callerName,omitempty"`
	AnsweredBy   string    `json:"answeredBy,omitempty"`
	DurationSec  int       `json:"durationSec"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	RecordingURL string    `json:"recordingUrl,omitempty"`
}

var (
	receptionists = []string{"Alice", "Ben", "Chloe", "Daniel"}
	callNotes     = []string{
		"Asked for invoice details",
		"Requested call back tomorrow",
		"Left a voicemail",
		"Discussed contract terms",
		"Follow-up email sent",
	}
	statusPool = []Status{StatusAnswered, StatusMissed, StatusVoicemail, StatusAnswered, StatusAnswered}
)

// Generate builds a plausible call log covering the last days days, three
// to seven calls a day during office hours, newest first.
func Generate(now time.Time, days int, rng *rand.Rand) []Call {
	now = now.UTC()
	var out []Call
	id := 1
	for d := 0; d < days; d++ {
		day := now.AddDate(0, 0, -d)
		count := 3 + rng.IntN(5)
		for i := 0; i < count; i++ {
			at := time.Date(day.Year(), day.Month(), day.Day(), 9+rng.IntN(9), rng.IntN(60), 0, 0, time.UTC)
			status := statusPool[rng.IntN(len(statusPool))]
			c := Call{
				ID:           fmt.Sprintf("call_%d", id),
				Time:         at,
				CallerNumber: fmt.Sprintf("+44 20 7%d", 100000+rng.IntN(900000)),
				Status:       status,
			}
			id++
			if rng.Float64() > 0.7 {
				c.CallerName = "ACME Ltd."
			}
			if status != StatusMissed {
				c.DurationSec = 30 + rng.IntN(240)
				c.AnsweredBy = receptionists[rng.IntN(len(receptionists))]
			}
			if rng.Float64() > 0.6 {
				c.Notes = callNotes[rng.IntN(len(callNotes))]
			}
			if status == StatusAnswered && rng.Float64() > 0.6 {
				c.RecordingURL = "/recordings/sample.mp3"
			}
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Call) int { return b.Time.Compare(a.Time) })
	return out
}

// Filter keeps calls matching the status (empty for all) and the search
// term over caller number, caller name and notes.
func Filter(calls []Call, status Status, query string) []Call {
	term := strings.ToLower(strings.TrimSpace(query))
	out := make([]Call, 0, len(calls))
	for _, c := range calls {
		if status != "" && c.Status != status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(c.CallerNumber), term) &&
			!strings.Contains(strings.ToLower(c.CallerName), term) &&
			!strings.Contains(strings.ToLower(c.Notes), term) {
			continue
		}
		out = append(out, c)
	}
	return out
}
