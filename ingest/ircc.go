// Package ingest pulls Express Entry rounds from IRCC (and optional MQTT
// announcements), validates them and appends them to a draw sink.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"crs-prediction-api/models"
	"crs-prediction-api/store"
)

// MaxRounds is how many of the most recent rounds are kept per fetch.
const MaxRounds = 50

const userAgent = "Mozilla/5.0 (compatible; crs-ingester/1.0)"

var digits = regexp.MustCompile(`\d+`)

// flexText accepts a JSON string or number.
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexText(s)
		return nil
	}
	*f = flexText(b)
	return nil
}

type round struct {
	DrawNumber   flexText `json:"drawNumber"`
	DrawDate     string   `json:"drawDate"`
	DrawDateFull string   `json:"drawDateFull"`
	DrawName     string   `json:"drawName"`
	DrawCRS      flexText `json:"drawCRS"`
	DrawSize     flexText `json:"drawSize"`
}

type roundsDocument struct {
	Rounds json.RawMessage `json:"rounds"`
}

// Fetcher downloads the IRCC rounds document.
type Fetcher struct {
	url    string
	client *http.Client
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *Fetcher) Fetch(ctx context.Context) ([]models.Draw, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch rounds: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch rounds: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read rounds: %w", err)
	}
	return ParseRounds(raw)
}

// ParseRounds decodes the IRCC document. rounds may be an object keyed
// "r390" or a plain array. It returns the usable draws, most recent round
// first, and how many rounds were skipped.
func ParseRounds(raw []byte) ([]models.Draw, int, error) {
	var doc roundsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode rounds: %w", err)
	}
	body := bytes.TrimSpace(doc.Rounds)
	if len(body) == 0 {
		return nil, 0, fmt.Errorf("decode rounds: document has no rounds")
	}

	type numbered struct {
		n int
		r round
	}
	var all []numbered
	switch body[0] {
	case '{':
		var byKey map[string]round
		if err := json.Unmarshal(body, &byKey); err != nil {
			return nil, 0, fmt.Errorf("decode rounds: %w", err)
		}
		for key, r := range byKey {
			n, _ := strconv.Atoi(strings.TrimPrefix(key, "r"))
			if r.DrawNumber == "" && n > 0 {
				r.DrawNumber = flexText(strconv.Itoa(n))
			}
			all = append(all, numbered{n: n, r: r})
		}
	case '[':
		var list []round
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, 0, fmt.Errorf("decode rounds: %w", err)
		}
		for _, r := range list {
			all = append(all, numbered{n: leadingInt(string(r.DrawNumber)), r: r})
		}
	default:
		return nil, 0, fmt.Errorf("decode rounds: unexpected rounds type")
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].n > all[j].n })
	if len(all) > MaxRounds {
		all = all[:MaxRounds]
	}

	draws := make([]models.Draw, 0, len(all))
	skipped := 0
	for _, item := range all {
		d, ok := convertRound(item.r)
		if !ok {
			skipped++
			continue
		}
		draws = append(draws, d)
	}
	return draws, skipped, nil
}

func convertRound(r round) (models.Draw, bool) {
	date, err := parseDrawDate(r.DrawDateFull, r.DrawDate)
	if err != nil {
		return models.Draw{}, false
	}
	score := leadingInt(string(r.DrawCRS))
	if score <= 0 {
		return models.Draw{}, false
	}
	name := strings.TrimSpace(r.DrawName)
	if name == "" {
		name = "General"
	}
	return models.Draw{
		Number:            strings.TrimSpace(string(r.DrawNumber)),
		Date:              date,
		Category:          name,
		Score:             score,
		InvitationsIssued: leadingInt(strings.ReplaceAll(string(r.DrawSize), ",", "")),
	}, true
}

var fullDateLayouts = []string{"January 2, 2006", "Jan 2, 2006", "January 02, 2006"}

func parseDrawDate(full, iso string) (time.Time, error) {
	full = strings.TrimSpace(full)
	for _, layout := range fullDateLayouts {
		if t, err := time.Parse(layout, full); err == nil {
			return t.UTC(), nil
		}
	}
	if iso = strings.TrimSpace(iso); iso != "" {
		return store.ParseTimestamp(iso)
	}
	return time.Time{}, fmt.Errorf("no usable draw date (%q, %q)", full, iso)
}

// leadingInt returns the first run of digits in s, or 0.
func leadingInt(s string) int {
	m := digits.FindString(s)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}
