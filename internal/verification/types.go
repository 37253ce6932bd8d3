// Package verification scores how strongly submitted evidence supports a
// claimed match outcome. Each supported game has an adapter that turns a
// match report plus proof-file metadata into a confidence in [0,1]; Verify
// blends a weak automated score with the manual-review heuristic.
package verification

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

type GameType string

const (
	GameSC2    GameType = "sc2"
	GameAOE2   GameType = "aoe2"
	GameFAF    GameType = "faf"
	GameManual GameType = "manual"
)

// ParseGameType accepts the closed set of game tags, case-insensitively.
func ParseGameType(s string) (GameType, bool) {
	switch gt := GameType(strings.ToLower(strings.TrimSpace(s))); gt {
	case GameSC2, GameAOE2, GameFAF, GameManual:
		return gt, true
	default:
		return "", false
	}
}

// ProofFile is the metadata the proof-storage collaborator returns for an
// upload. Byte content is never inspected here.
type ProofFile struct {
	Ref         string `json:"ref" bson:"ref"`
	Filename    string `json:"filename" bson:"filename"`
	ContentType string `json:"contentType" bson:"contentType"`
	Size        int64  `json:"size" bson:"size"`
}

func (p ProofFile) lowerName() string {
	return strings.ToLower(p.Filename)
}

func (p ProofFile) isImage() bool {
	return strings.Contains(p.lowerName(), "screenshot") || strings.HasPrefix(p.ContentType, "image/")
}

// MatchData is the free-form match report supplied with a result.
type MatchData map[string]any

func (m MatchData) has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m MatchData) missing(keys ...string) []string {
	var out []string
	for _, k := range keys {
		if !m.has(k) {
			out = append(out, k)
		}
	}
	return out
}

// listLen reports the length of a list-valued field; scalars and absent keys count as 0.
func (m MatchData) listLen(key string) int {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len()
	}
	return 0
}

// stringList returns a list-of-strings field. A present value that is not a
// list of strings is malformed input.
func (m MatchData) stringList(key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for i, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected list, got %T", key, v)
	}
}

// number returns a numeric field, 0 when absent.
func (m MatchData) number(key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}

// text returns a string field, "" when absent.
func (m MatchData) text(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", key, v)
	}
	return s, nil
}

// Result is the outcome of verifying one submission.
type Result struct {
	Verified   bool           `json:"verified" bson:"verified"`
	Confidence float64        `json:"confidence" bson:"confidence"`
	Method     string         `json:"method" bson:"method"`
	Details    map[string]any `json:"details" bson:"details"`
	// Downgraded is set when the automated score was blended with, or
	// replaced by, the manual-review heuristic.
	Downgraded     bool      `json:"downgraded" bson:"downgraded"`
	FallbackReason string    `json:"fallbackReason,omitempty" bson:"fallbackReason,omitempty"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

// finalize rounds away float accumulation noise and clamps to [0,1].
func finalize(confidence float64) float64 {
	c := math.Round(confidence*1e4) / 1e4
	return math.Max(0, math.Min(c, 1))
}
