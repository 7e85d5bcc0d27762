package forecast

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ParseResponse extracts the forecast JSON from raw model text. Code fences
// and control characters are stripped and the outermost object decoded. If
// that fails, one more attempt is made after escaping raw line breaks and
// tabs inside string literals.
func ParseResponse(text string) (*Forecast, error) {
	first, err := decodeForecast(stripControl(stripCodeFences(text)))
	if err == nil {
		return first, nil
	}
	second, err2 := decodeForecast(sanitizeAggressive(stripCodeFences(text)))
	if err2 == nil {
		return second, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}

func decodeForecast(text string) (*Forecast, error) {
	body, ok := outermostObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var f Forecast
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		return nil, err
	}
	if len(f.Predictions) == 0 && strings.TrimSpace(f.TrendAnalysis) == "" {
		return nil, fmt.Errorf("response has neither predictions nor trend analysis")
	}
	return &f, nil
}

func stripCodeFences(src string) string {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[nl+1:]
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// stripControl drops control characters other than JSON whitespace.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}

func outermostObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// sanitizeAggressive escapes line breaks and tabs that appear inside string
// literals and drops every other control character.
func sanitizeAggressive(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if r == '"' {
			inString = true
		}
		if (r < 0x20 && r != '\n' && r != '\r' && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
