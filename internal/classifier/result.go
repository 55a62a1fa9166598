package classifier

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/xlsmart/talenthub/internal/models"
)

// NoMatchSentinel is the literal the model is told to answer with when no
// candidate fits.
const NoMatchSentinel = "NO_MATCH"

// Result is the validated outcome of a classification: either Matched with a
// candidate id, or NoMatch. The zero value is NoMatch.
type Result struct {
	id         string
	confidence float64
}

// Matched returns a Result selecting id.
func Matched(id string, confidence float64) Result {
	return Result{id: id, confidence: confidence}
}

// NoMatch returns the no-match Result.
func NoMatch() Result {
	return Result{}
}

// ID returns the matched candidate id and true, or "" and false for NoMatch.
func (r Result) ID() (string, bool) {
	return r.id, r.id != ""
}

// IsNoMatch reports whether r carries no candidate.
func (r Result) IsNoMatch() bool {
	return r.id == ""
}

// Confidence is the model's self-reported confidence in [0, 1]; 0 when absent.
func (r Result) Confidence() float64 {
	return r.confidence
}

func (r Result) String() string {
	if r.IsNoMatch() {
		return NoMatchSentinel
	}
	return r.id
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// selection is the JSON shape accepted from the model.
type selection struct {
	RoleID         *string  `json:"role_id"`
	ID             *string  `json:"id"`
	StandardRoleID *string  `json:"standard_role_id"`
	Confidence     *float64 `json:"confidence"`
}

// ParseSelection turns raw model output into a Result, accepting a bare id or
// a JSON object. Anything that is not a well-formed UUID present in
// candidates becomes NoMatch.
func ParseSelection(raw string, candidates []models.StandardRole) Result {
	text := stripFences(raw)
	if text == "" {
		return NoMatch()
	}

	candidate := text
	confidence := 1.0
	if strings.HasPrefix(text, "{") {
		var sel selection
		if err := json.Unmarshal([]byte(text), &sel); err != nil {
			return NoMatch()
		}
		switch {
		case sel.RoleID != nil:
			candidate = *sel.RoleID
		case sel.StandardRoleID != nil:
			candidate = *sel.StandardRoleID
		case sel.ID != nil:
			candidate = *sel.ID
		default:
			return NoMatch()
		}
		if sel.Confidence != nil {
			confidence = clamp(*sel.Confidence)
		}
	}

	candidate = strings.Trim(strings.TrimSpace(candidate), `"'.`)
	if strings.EqualFold(candidate, NoMatchSentinel) {
		return NoMatch()
	}

	parsed, err := uuid.Parse(candidate)
	if err != nil {
		return NoMatch()
	}
	for _, c := range candidates {
		if cid, err := uuid.Parse(c.ID); err == nil && cid == parsed {
			return Matched(c.ID, confidence)
		}
	}
	return NoMatch()
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	return text
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		// some models answer in percent
		if f <= 100 {
			return f / 100
		}
		return 1
	}
	return f
}

// Consensus returns the most frequent Result among votes; on a tie the value
// that reached the count first wins.
func Consensus(votes []Result) Result {
	counts := make(map[string]int, len(votes))
	best, bestCount := NoMatch(), 0
	for _, v := range votes {
		counts[v.id]++
		if counts[v.id] > bestCount {
			best, bestCount = v, counts[v.id]
		}
	}
	return best
}
