package calls

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// GroupBy selects the analytics bucket size.
type GroupBy string

const (
	GroupByDay  GroupBy = "day"
	GroupByWeek GroupBy = "week"
)

// ParseGroupBy defaults to day.
func ParseGroupBy(value string) GroupBy {
	if strings.EqualFold(strings.TrimSpace(value), string(GroupByWeek)) {
		return GroupByWeek
	}
	return GroupByDay
}

// Bucket aggregates calls for one day or ISO week.
type Bucket struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Answered     int    `json:"answered"`
	Missed       int    `json:"missed"`
	Voicemail    int    `json:"voicemail"`
	AnsweredRate int    `json:"answeredRate"`
}

// Total is the number of calls in the bucket.
func (b Bucket) Total() int { return b.Answered + b.Missed + b.Voicemail }

// BuildAnalytics buckets calls by UTC day (key YYYY-MM-DD, label D/M) or ISO
// week (key YYYY-WW, label WYYYY-WW), sorted by key.
func BuildAnalytics(calls []Call, groupBy GroupBy) []Bucket {
	index := make(map[string]int)
	var buckets []Bucket
	for _, c := range calls {
		t := c.Time.UTC()
		var key, label string
		if groupBy == GroupByWeek {
			year, week := t.ISOWeek()
			key = fmt.Sprintf("%d-%02d", year, week)
			label = "W" + key
		} else {
			key = t.Format("2006-01-02")
			label = fmt.Sprintf("%d/%d", t.Day(), int(t.Month()))
		}
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Key: key, Label: label})
		}
		switch c.Status {
		case StatusAnswered:
			buckets[i].Answered++
		case StatusMissed:
			buckets[i].Missed++
		case StatusVoicemail:
			buckets[i].Voicemail++
		}
	}
	slices.SortFunc(buckets, func(a, b Bucket) int { return strings.Compare(a.Key, b.Key) })
	for i := range buckets {
		buckets[i].AnsweredRate = percent(buckets[i].Answered, buckets[i].Total())
	}
	return buckets
}

// Summary holds the headline call statistics.
type Summary struct {
	Total             int    `json:"total"`
	AnsweredRate      int    `json:"answeredRate"`
	AvgDurationSec    int    `json:"avgDurationSec"`
	AvgDurationString string `json:"avgDuration"`
}

// Summarize computes total, answered rate (%) and mean duration in whole
// seconds.
func Summarize(calls []Call) Summary {
	s := Summary{Total: len(calls)}
	if len(calls) > 0 {
		answered, duration := 0, 0
		for _, c := range calls {
			if c.Status == StatusAnswered {
				answered++
			}
			duration += c.DurationSec
		}
		s.AnsweredRate = percent(answered, len(calls))
		s.AvgDurationSec = int(math.Round(float64(duration) / float64(len(calls))))
	}
	s.AvgDurationString = FormatDuration(s.AvgDurationSec)
	return s
}

// FormatDuration renders seconds as "Mm SSs".
func FormatDuration(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%dm %02ds", sec/60, sec%60)
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
