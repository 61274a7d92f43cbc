package calls

import (
	"bytes"
	"context"
	"encoding/csv"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/virtual-office/internal/cache"
	"github.com/noah-isme/virtual-office/internal/common"
)

var now = time.Date(2025, 9, 10, 18, 30, 0, 0, time.UTC)

func at(day, hour int) time.Time { return time.Date(2025, 9, day, hour, 0, 0, 0, time.UTC) }

func TestGenerateShape(t *testing.T) {
	calls := Generate(now, 7, rand.New(rand.NewPCG(1, 2)))
	require.GreaterOrEqual(t, len(calls), 21)
	require.LessOrEqual(t, len(calls), 49)
	for i, c := range calls {
		if i > 0 {
			assert.False(t, c.Time.After(calls[i-1].Time), "newest first")
		}
		assert.GreaterOrEqual(t, c.Time.Hour(), 9)
		assert.LessOrEqual(t, c.Time.Hour(), 17)
		if c.Status == StatusMissed {
			assert.Zero(t, c.DurationSec)
			assert.Empty(t, c.AnsweredBy)
		} else {
			assert.GreaterOrEqual(t, c.DurationSec, 30)
			assert.NotEmpty(t, c.AnsweredBy)
		}
		if c.RecordingURL != "" {
			assert.Equal(t, StatusAnswered, c.Status)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(now, 7, rand.New(rand.NewPCG(9, 9)))
	b := Generate(now, 7, rand.New(rand.NewPCG(9, 9)))
	assert.Equal(t, a, b)
}

func TestFilter(t *testing.T) {
	calls := []Call{
		{ID: "1", CallerNumber: "+44 20 7111111", Status: StatusAnswered, Notes: "Discussed contract terms"},
		{ID: "2", CallerNumber: "+44 20 7222222", CallerName: "ACME Ltd.", Status: StatusMissed},
		{ID: "3", CallerNumber: "+44 20 7333333", Status: StatusVoicemail},
	}
	assert.Len(t, Filter(calls, "", ""), 3)
	assert.Len(t, Filter(calls, StatusMissed, ""), 1)
	assert.Len(t, Filter(calls, "", "acme"), 1)
	assert.Len(t, Filter(calls, "", "CONTRACT"), 1)
	assert.Len(t, Filter(calls, "", "7333"), 1)
	assert.Empty(t, Filter(calls, StatusAnswered, "acme"))
}

func TestParseHelpers(t *testing.T) {
	s, ok := ParseStatus("Missed")
	assert.True(t, ok)
	assert.Equal(t, StatusMissed, s)
	_, ok = ParseStatus("all")
	assert.False(t, ok)

	assert.Equal(t, 30, ParseRange("30"))
	assert.Equal(t, 7, ParseRange("90"))
	assert.Equal(t, 7, ParseRange(""))
	assert.Equal(t, GroupByWeek, ParseGroupBy("WEEK"))
	assert.Equal(t, GroupByDay, ParseGroupBy("month"))
}

func TestBuildAnalyticsByDay(t *testing.T) {
	calls := []Call{
		{Time: at(9, 10), Status: StatusAnswered},
		{Time: at(9, 11), Status: StatusMissed},
		{Time: at(9, 12), Status: StatusAnswered},
		{Time: at(8, 10), Status: StatusVoicemail},
	}
	buckets := BuildAnalytics(calls, GroupByDay)
	require.Len(t, buckets, 2)
	assert.Equal(t, Bucket{Key: "2025-09-08", Label: "8/9", Voicemail: 1, AnsweredRate: 0}, buckets[0])
	assert.Equal(t, "2025-09-09", buckets[1].Key)
	assert.Equal(t, 2, buckets[1].Answered)
	assert.Equal(t, 67, buckets[1].AnsweredRate)
}

func TestBuildAnalyticsByISOWeek(t *testing.T) {
	calls := []Call{
		{Time: time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC), Status: StatusAnswered},
		{Time: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), Status: StatusMissed},
		{Time: time.Date(2024, 12, 29, 10, 0, 0, 0, time.UTC), Status: StatusAnswered},
	}
	buckets := BuildAnalytics(calls, GroupByWeek)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-52", buckets[0].Key)
	assert.Equal(t, "2025-01", buckets[1].Key)
	assert.Equal(t, "W2025-01", buckets[1].Label)
	assert.Equal(t, 2, buckets[1].Total())
	assert.Equal(t, 50, buckets[1].AnsweredRate)
}

func TestSummarize(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, Summary{AvgDurationString: "0m 00s"}, s)

	s = Summarize([]Call{
		{Status: StatusAnswered, DurationSec: 100},
		{Status: StatusMissed},
		{Status: StatusAnswered, DurationSec: 35},
	})
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 67, s.AnsweredRate)
	assert.Equal(t, 45, s.AvgDurationSec)
	assert.Equal(t, "0m 45s", s.AvgDurationString)
	assert.Equal(t, "4m 05s", FormatDuration(245))
}

func TestWriteCSVQuotesFields(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Call{{
		Time:         at(9, 10),
		CallerNumber: "+44 20 7111111",
		CallerName:   "ACME, Ltd.",
		DurationSec:  61,
		Status:       StatusAnswered,
		Notes:        `said "call back"`,
	}})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ExportHeader, records[0])
	assert.Equal(t, "ACME, Ltd.", records[1][2])
	assert.Equal(t, "61", records[1][4])
	assert.Equal(t, `said "call back"`, records[1][6])
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{
		Cache: &cache.JSON{Client: client, Prefix: "test:"},
		Log:   zerolog.Nop(),
		Now:   func() time.Time { return now },
	}
}

func TestServiceCallsStableWithinDay(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	first, err := svc.Calls(ctx, "u1", 7)
	require.NoError(t, err)
	second, err := svc.Calls(ctx, "u1", 7)
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Time.Equal(second[i].Time))
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestServiceListPaginates(t *testing.T) {
	svc := newTestService(t)
	page, err := svc.List(context.Background(), "u1", Query{Days: 30, Page: 2, PerPage: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.GreaterOrEqual(t, page.Summary.Total, 90)
}

func TestHandlers(t *testing.T) {
	h := &Handler{Svc: newTestService(t)}

	req := httptest.NewRequest(http.MethodGet, "/calls/analytics?range=7&groupBy=week", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	h.Analytics(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"groupBy":"week"`)

	req = httptest.NewRequest(http.MethodGet, "/calls/export.csv?status=missed", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec = httptest.NewRecorder()
	h.Export(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	for _, row := range records[1:] {
		assert.Equal(t, "missed", row[5])
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/calls", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
