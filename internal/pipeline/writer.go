package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/tariff-catalog/constants"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// WriteReport renders a report as json, yaml or text.
func WriteReport(w io.Writer, r RunReport, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		return writeText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, r RunReport) error {
	summary := fmt.Sprintf("%s %s  %s %s\n%s %s  %s %d\n%s %d of %d  %s %d -> %d  %s %d\n%s %.1fs",
		dimStyle.Render("Run:"), r.RunID,
		dimStyle.Render("Status:"), styleRun(r.Status),
		dimStyle.Render("Provider:"), r.ProviderID,
		dimStyle.Render("Pages:"), r.TotalPages,
		dimStyle.Render("Contributing:"), r.ContributingPages, r.TotalPages,
		dimStyle.Render("Candidates:"), r.CandidatesBeforeDedup, r.CandidatesAfterDedup,
		dimStyle.Render("Dropped:"), r.DroppedCandidates,
		dimStyle.Render("Duration:"), r.Duration().Seconds(),
	)
	if _, err := fmt.Fprintln(w, summaryStyle.Render(titleStyle.Render("Extraction run")+"\n"+summary)); err != nil {
		return err
	}

	for _, p := range r.Pages {
		line := fmt.Sprintf("  page %3d  %-26s conf %5.1f  chars %5d  cands %3d",
			p.Index, stylePage(p.Status), p.Confidence, p.Chars, p.Candidates)
		if p.Reason != "" {
			line += "  " + dimStyle.Render(p.Reason)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if len(r.Conflicts) > 0 {
		if _, err := fmt.Fprintln(w, "\n"+titleStyle.Render("Price conflicts")); err != nil {
			return err
		}
		for _, c := range r.Conflicts {
			vals := make([]string, len(c.Values))
			for i, v := range c.Values {
				vals[i] = v.String()
			}
			if _, err := fmt.Fprintf(w, "  %-16s %s  kept %s\n", c.Code, strings.Join(vals, " | "), c.Survivor.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func styleRun(s constants.RunStatus) string {
	switch s {
	case constants.RunOK:
		return okStyle.Render(string(s))
	case constants.RunPartial, constants.RunCancelled:
		return warnStyle.Render(string(s))
	}
	return errorStyle.Render(string(s))
}

func stylePage(s constants.PageStatus) string {
	switch {
	case s == constants.PageContributed:
		return okStyle.Render(string(s))
	case s.Failed():
		return errorStyle.Render(string(s))
	}
	return warnStyle.Render(string(s))
}
