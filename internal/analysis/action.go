package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ActionKind tags the decoded planner response.
type ActionKind string

const (
	// ActionCompute requests one more sandboxed computation.
	ActionCompute ActionKind = "compute"
	// ActionFinal terminates the negotiation with a summary and chart code.
	ActionFinal ActionKind = "final"
	// ActionMalformed marks an undecodable response. It triggers a
	// corrective retry turn, never a crash.
	ActionMalformed ActionKind = "malformed"
)

// Figure is the planner's declared metadata for one chart.
type Figure struct {
	Title       string `json:"title"`
	Description string `json:"description_md"`
}

// Action is the decoded contract of one planner response. Only the fields
// for the tagged kind are meaningful; Raw carries the original text for
// malformed responses.
type Action struct {
	Kind      ActionKind
	Reason    string
	Code      string
	Summary   string
	ChartCode string
	Figures   []Figure
	Raw       string
}

// payload mirrors the JSON shape of the two-action contract.
type payload struct {
	Action    string   `json:"action"`
	Reason    string   `json:"reason"`
	Code      string   `json:"code"`
	SummaryMD string   `json:"summary_md"`
	ChartCode string   `json:"chart_code"`
	Figures   []Figure `json:"figures"`
}

// DecodeAction interprets a raw planner response against the contract.
// A surrounding code fence is tolerated (models love wrapping JSON in
// ```json blocks); any other malformation maps to ActionMalformed.
func DecodeAction(raw string) Action {
	cleaned := stripFence(raw)

	var p payload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return Action{Kind: ActionMalformed, Raw: raw}
	}

	switch strings.ToLower(strings.TrimSpace(p.Action)) {
	case "compute":
		return Action{
			Kind:   ActionCompute,
			Reason: p.Reason,
			Code:   p.Code,
		}
	case "final":
		return Action{
			Kind:      ActionFinal,
			Summary:   p.SummaryMD,
			ChartCode: p.ChartCode,
			Figures:   p.Figures,
		}
	default:
		return Action{Kind: ActionMalformed, Raw: raw}
	}
}

// stripFence removes one leading fence line and any trailing fence lines.
// It does not attempt to repair anything else; broken JSON stays broken.
func stripFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	lines = lines[1:]
	for len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var (
	pythonFenceRe  = regexp.MustCompile("(?s)```python(.*?)```")
	genericFenceRe = regexp.MustCompile("(?s)```(.*?)```")
)

// ExtractCode pulls the script out of a fenced code block: a ```python
// fence first, any generic fence as fallback. Returns "" when no fenced
// block is present.
func ExtractCode(text string) string {
	if m := pythonFenceRe.FindStringSubmatch(text); m != nil {
		return normalizeNewlines(strings.TrimSpace(m[1]))
	}
	if m := genericFenceRe.FindStringSubmatch(text); m != nil {
		return normalizeNewlines(strings.TrimSpace(m[1]))
	}
	return ""
}

// normalizeNewlines repairs blocks where the planner escaped its newlines
// instead of emitting literal ones. Only a suspiciously single-line block
// containing \n sequences is touched, and only if unescaping actually adds
// lines.
func normalizeNewlines(code string) string {
	if strings.Count(code, "\n") <= 1 && strings.Contains(code, `\n`) {
		candidate := strings.ReplaceAll(code, `\n`, "\n")
		if strings.Count(candidate, "\n") > strings.Count(code, "\n") {
			return candidate
		}
	}
	return code
}
