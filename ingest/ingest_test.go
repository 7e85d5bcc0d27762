package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crs-prediction-api/logger"
	"crs-prediction-api/models"
	"crs-prediction-api/store"
)

const keyedRounds = `{
  "classes": "",
  "rounds": {
    "r388": {"drawNumber": "388", "drawDate": "2025-12-16", "drawDateFull": "December 16, 2025", "drawName": "Canadian Experience Class", "drawSize": "5,000", "drawCRS": "515"},
    "r390": {"drawNumber": "390", "drawDateFull": "January 7, 2026", "drawName": " French language proficiency (Version 1) ", "drawSize": "4,500", "drawCRS": "412"},
    "r389": {"drawNumber": "389", "drawDate": "2025-12-17", "drawDateFull": "not a date", "drawName": "Provincial Nominee Program", "drawSize": "799", "drawCRS": "741"},
    "r387": {"drawNumber": "387", "drawDateFull": "December 10, 2025", "drawName": "Healthcare", "drawSize": "2,500", "drawCRS": "0"},
    "r386": {"drawDateFull": "", "drawName": "Trade", "drawSize": "1,000", "drawCRS": "433"}
  }
}`

func TestParseRoundsKeyed(t *testing.T) {
	draws, skipped, err := ParseRounds([]byte(keyedRounds))
	require.NoError(t, err)

	// r387 has a zero score and r386 has no date.
	assert.Equal(t, 2, skipped)
	require.Len(t, draws, 3)

	assert.Equal(t, "390", draws[0].Number)
	assert.Equal(t, time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC), draws[0].Date)
	assert.Equal(t, "French language proficiency (Version 1)", draws[0].Category)
	assert.Equal(t, 4500, draws[0].InvitationsIssued)

	// falls back to the ISO date when the long form does not parse
	assert.Equal(t, "389", draws[1].Number)
	assert.Equal(t, time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC), draws[1].Date)
	assert.Equal(t, 741, draws[1].Score)

	assert.Equal(t, 5000, draws[2].InvitationsIssued)
}

func TestParseRoundsArray(t *testing.T) {
	raw := `{"rounds": [
	  {"drawNumber": 301, "drawDateFull": "June 4, 2024", "drawName": "", "drawSize": 2985, "drawCRS": 676},
	  {"drawNumber": "302", "drawDateFull": "June 19, 2024", "drawName": "Provincial Nominee Program", "drawSize": "1,499", "drawCRS": "663 points"}
	]}`
	draws, skipped, err := ParseRounds([]byte(raw))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, draws, 2)

	assert.Equal(t, "302", draws[0].Number)
	assert.Equal(t, 663, draws[0].Score)
	assert.Equal(t, "301", draws[1].Number)
	assert.Equal(t, "General", draws[1].Category)
	assert.Equal(t, 2985, draws[1].InvitationsIssued)
}

func TestParseRoundsKeepsMostRecent(t *testing.T) {
	raw := `{"rounds": [`
	for i := 1; i <= MaxRounds+10; i++ {
		if i > 1 {
			raw += ","
		}
		raw += `{"drawNumber": "` + strconv.Itoa(i) + `", "drawDateFull": "January 7, 2026", "drawName": "General", "drawSize": "10", "drawCRS": "500"}`
	}
	raw += `]}`

	draws, _, err := ParseRounds([]byte(raw))
	require.NoError(t, err)
	require.Len(t, draws, MaxRounds)
	assert.Equal(t, strconv.Itoa(MaxRounds+10), draws[0].Number)
	assert.Equal(t, "11", draws[MaxRounds-1].Number)
}

func TestParseRoundsErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `<html>`},
		{"no rounds", `{"classes": ""}`},
		{"rounds is a string", `{"rounds": "r1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRounds([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "crs-ingester")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(keyedRounds))
	}))
	defer srv.Close()

	draws, skipped, err := NewFetcher(srv.URL+"/rounds.json", 5*time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, draws, 3)
	assert.Equal(t, 2, skipped)

	_, _, err = NewFetcher(srv.URL+"/missing", 5*time.Second).Fetch(context.Background())
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestValidateDraw(t *testing.T) {
	good := models.Draw{Number: "390", Date: time.Now(), Category: "CEC", Score: 515, InvitationsIssued: 10}
	assert.NoError(t, ValidateDraw(good))

	tests := []struct {
		name  string
		edit  func(*models.Draw)
		field string
	}{
		{"missing number", func(d *models.Draw) { d.Number = "" }, "number(required)"},
		{"zero date", func(d *models.Draw) { d.Date = time.Time{} }, "date(required)"},
		{"zero score", func(d *models.Draw) { d.Score = 0 }, "score(gt)"},
		{"score too high", func(d *models.Draw) { d.Score = 1500 }, "score(lte)"},
		{"negative invitations", func(d *models.Draw) { d.InvitationsIssued = -1 }, "invitationsissued(gte)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := good
			tt.edit(&d)
			err := ValidateDraw(d)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateStoredDraw(t *testing.T) {
	d := models.Draw{Date: time.Now(), Category: "CEC", Score: 515}
	assert.NoError(t, ValidateStoredDraw(d))
	assert.ErrorContains(t, ValidateDraw(d), "number(required)")

	d.Score = 0
	err := ValidateStoredDraw(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score(gt)")
	assert.NotContains(t, err.Error(), "number")
}

func TestParseAnnouncement(t *testing.T) {
	d, err := ParseAnnouncement([]byte(`{"number":"391","date":"2026-01-21","category":"Canadian Experience Class","score":509,"invitations":6000}`))
	require.NoError(t, err)
	assert.Equal(t, "391", d.Number)
	assert.Equal(t, 509, d.Score)
	assert.Equal(t, 2026, d.Date.Year())

	_, err = ParseAnnouncement([]byte(`{"number":"391","date":"soon","category":"CEC","score":509}`))
	assert.Error(t, err)
	_, err = ParseAnnouncement([]byte(`{"number":"","date":"2026-01-21","category":"CEC","score":509}`))
	assert.Error(t, err)
	_, err = ParseAnnouncement([]byte(`not json`))
	assert.Error(t, err)
}

type staticSource struct {
	draws   []models.Draw
	skipped int
	err     error
}

func (s staticSource) Fetch(ctx context.Context) ([]models.Draw, int, error) {
	return s.draws, s.skipped, s.err
}

type recordingPublisher struct {
	channels []string
	events   []DrawsEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	p.channels = append(p.channels, channel)
	p.events = append(p.events, message.(DrawsEvent))
	return nil
}

func TestIngesterRunOnce(t *testing.T) {
	sink := store.NewFileStore(t.TempDir())
	pub := &recordingPublisher{}
	draws, skipped, err := ParseRounds([]byte(keyedRounds))
	require.NoError(t, err)
	draws = append(draws, models.Draw{Number: "bad", Date: time.Now(), Category: "CEC", Score: -5})

	ing := NewIngester(staticSource{draws: draws, skipped: skipped}, sink, pub, "crs:draws", logger.Nop())

	res, err := ing.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Received: 6, Rejected: 3, Stored: 3}, res)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "crs:draws", pub.channels[0])
	assert.Equal(t, "390", pub.events[0].Latest.Number)
	assert.Equal(t, "ircc", pub.events[0].Origin)

	// a second identical fetch stores nothing and stays quiet
	res, err = ing.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Stored)
	assert.Len(t, pub.events, 1)

	data, err := sink.LoadOfficialData(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.Draws, 3)
}

func TestIngesterSourceError(t *testing.T) {
	ing := NewIngester(staticSource{err: errors.New("dns failure")}, store.NewFileStore(t.TempDir()), nil, "crs:draws", nil)
	_, err := ing.RunOnce(context.Background())
	assert.ErrorContains(t, err, "dns failure")
}

type failingSink struct{}

func (failingSink) SaveDraws(ctx context.Context, draws []models.Draw) (int, error) {
	return 0, errors.New("disk full")
}

func TestIngesterSinkError(t *testing.T) {
	pub := &recordingPublisher{}
	ing := NewIngester(nil, failingSink{}, pub, "crs:draws", logger.Nop())
	d := models.Draw{Number: "391", Date: time.Now(), Category: "CEC", Score: 509}

	_, err := ing.Ingest(context.Background(), "mqtt", []models.Draw{d})
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, pub.events)

	// announcements log instead of returning
	ing.HandleAnnouncement(context.Background(), d)
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	t.Run("empty store is fatal", func(t *testing.T) {
		issues := Verify(context.Background(), store.NewFileStore(t.TempDir()), now)
		require.Len(t, issues, 1)
		assert.True(t, issues[0].Fatal)
	})

	t.Run("fresh store passes", func(t *testing.T) {
		s := store.NewFileStore(t.TempDir())
		_, err := s.SaveDraws(context.Background(), []models.Draw{
			{Number: "390", Date: now.AddDate(0, 0, -13), Category: "CEC", Score: 515},
		})
		require.NoError(t, err)
		assert.Empty(t, Verify(context.Background(), s, now))
	})

	t.Run("site document without round numbers passes", func(t *testing.T) {
		dir := t.TempDir()
		doc := `{"draws": [
  {"date": "2026-01-14", "type": "Canadian Experience Class", "score": 509, "itas": 6000},
  {"date": "2026-01-07", "type": "Provincial Nominee Program", "score": 746, "itas": 681}
]}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, store.DrawsFile), []byte(doc), 0o644))
		assert.Empty(t, Verify(context.Background(), store.NewFileStore(dir), now))
	})

	t.Run("duplicate numbers are reported", func(t *testing.T) {
		dir := t.TempDir()
		doc := `{"draws": [
  {"number": "390", "date": "2026-01-14", "type": "Canadian Experience Class", "score": 509, "itas": 6000},
  {"number": "390", "date": "2026-01-07", "type": "Provincial Nominee Program", "score": 746, "itas": 681}
]}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, store.DrawsFile), []byte(doc), 0o644))
		issues := Verify(context.Background(), store.NewFileStore(dir), now)
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0].Message, `duplicate draw number "390"`)
	})

	t.Run("stale draws are reported", func(t *testing.T) {
		s := store.NewFileStore(t.TempDir())
		_, err := s.SaveDraws(context.Background(), []models.Draw{
			{Number: "300", Date: now.AddDate(0, -6, 0), Category: "CEC", Score: 515},
		})
		require.NoError(t, err)
		issues := Verify(context.Background(), s, now)
		require.Len(t, issues, 1)
		assert.False(t, issues[0].Fatal)
		assert.Contains(t, issues[0].Message, "newest draw")
	})
}
