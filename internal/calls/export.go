package calls

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// ExportHeader is the first row of a call log export.
var ExportHeader = []string{"Time", "Caller Number", "Caller Name", "Answered By", "Duration (s)", "Status", "Notes"}

// WriteCSV serialises calls, one row per call, times in RFC 3339 UTC.
func WriteCSV(w io.Writer, calls []Call) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return err
	}
	for _, c := range calls {
		if err := writer.Write([]string{
			c.Time.UTC().Format(time.RFC3339),
			c.CallerNumber,
			c.CallerName,
			c.AnsweredBy,
			strconv.Itoa(c.DurationSec),
			string(c.Status),
			c.Notes,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
