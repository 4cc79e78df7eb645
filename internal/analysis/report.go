package analysis

import (
	"fmt"
	"strings"
)

// Section is one figure entry in the assembled report. ImagePath is empty
// for text-only sections (figures the planner described but for which no
// artifact was produced).
type Section struct {
	Title       string `json:"title"`
	ImagePath   string `json:"imagePath,omitempty"`
	Description string `json:"description,omitempty"`
}

// Report is the assembled result of a succeeded analysis session. Built
// once, never mutated afterwards.
type Report struct {
	Summary         string    `json:"summary"`
	Sections        []Section `json:"sections"`
	Charts          []string  `json:"charts"`
	OriginalContext string    `json:"originalContext"`
}

// BuildReport pairs the planner's declared figures with the collected
// artifact paths positionally. Figures beyond the artifact count are kept as
// text-only sections; artifacts beyond the figure count are dropped from the
// report (never deleted from disk). Pure and deterministic.
func BuildReport(summary string, figures []Figure, artifacts []string) Report {
	paired := min(len(figures), len(artifacts))

	sections := make([]Section, 0, len(figures))
	for i, fig := range figures {
		title := fig.Title
		if title == "" {
			title = fmt.Sprintf("Figure %d", i+1)
		}
		section := Section{Title: title, Description: strings.TrimSpace(fig.Description)}
		if i < paired {
			section.ImagePath = artifacts[i]
		}
		sections = append(sections, section)
	}

	return Report{
		Summary:  strings.TrimSpace(summary),
		Sections: sections,
		Charts:   artifacts[:paired:paired],
	}
}

// Markdown renders the report as a single markdown document: the summary,
// then one section per figure with its image link (when illustrated) and
// description.
func (r Report) Markdown() string {
	var parts []string
	if r.Summary != "" {
		parts = append(parts, r.Summary)
	}
	for _, section := range r.Sections {
		parts = append(parts, fmt.Sprintf("### %s\n", section.Title))
		if section.ImagePath != "" {
			parts = append(parts, fmt.Sprintf("![%s](%s)\n", section.Title, section.ImagePath))
		}
		if section.Description != "" {
			parts = append(parts, section.Description)
		}
	}
	return strings.Join(parts, "\n\n")
}
