package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ppiankov/entityshape/internal/model"
)

// Renderer writes reports as JSON or Markdown
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes v as indented JSON
func (r *Renderer) RenderJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// RenderMarkdown writes one section per report
func (r *Renderer) RenderMarkdown(w io.Writer, reports ...*model.Report) error {
	var buf bytes.Buffer
	for i, report := range reports {
		if i > 0 {
			buf.WriteString("\n")
		}
		writeMarkdown(&buf, report)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SummaryLine condenses a report to a single line for terminal output
func (r *Renderer) SummaryLine(report *model.Report) string {
	if report.Error != "" {
		return fmt.Sprintf("%s %s: error: %s", report.Schema, report.Entity, report.Error)
	}

	s := report.Summary
	status := "conforms"
	if !s.Conforms {
		status = "does not conform"
	}
	line := fmt.Sprintf("%s %s: %s (%d/%d required)", report.Schema, report.Entity, status, s.RequiredSatisfied, s.RequiredTotal)
	if len(s.FailingProperties) > 0 {
		failing := make([]string, len(s.FailingProperties))
		for i, p := range s.FailingProperties {
			failing[i] = string(p)
		}
		line += ", failing: " + strings.Join(failing, ", ")
	}
	return line
}

// WriteFile renders to path, creating parent directories. "-" means stdout.
func (r *Renderer) WriteFile(path string, render func(io.Writer) error) error {
	if path == "-" {
		return render(os.Stdout)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeMarkdown(buf *bytes.Buffer, report *model.Report) {
	title := report.Schema
	if report.Name != "" {
		title += " (" + report.Name + ")"
	}
	fmt.Fprintf(buf, "# %s vs %s\n\n", title, report.Entity)

	if report.Error != "" {
		fmt.Fprintf(buf, "**Error:** %s\n", report.Error)
		return
	}

	conforms := "no"
	if report.Summary.Conforms {
		conforms = "yes"
	}
	fmt.Fprintf(buf, "**Conforms:** %s | **Required satisfied:** %d/%d | **Language:** %s\n\n",
		conforms, report.Summary.RequiredSatisfied, report.Summary.RequiredTotal, report.Language)

	buf.WriteString("## Properties\n\n")
	buf.WriteString("| Property | Name | Necessity | Response |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, id := range sortedProperties(report.Properties) {
		p := report.Properties[id]
		fmt.Fprintf(buf, "| %s | %s | %s | %s |\n", id, escapeCell(p.Name), p.Necessity, p.Response)
	}

	if len(report.Statements) == 0 {
		return
	}
	buf.WriteString("\n## Statements\n\n")
	buf.WriteString("| Statement | Property | Necessity | Response |\n")
	buf.WriteString("|---|---|---|---|\n")
	ids := make([]model.StatementID, 0, len(report.Statements))
	for id := range report.Statements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := report.Statements[ids[i]], report.Statements[ids[j]]
		if a.Property != b.Property {
			return propertyLess(a.Property, b.Property)
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		st := report.Statements[id]
		fmt.Fprintf(buf, "| %s | %s | %s | %s |\n", id, st.Property, st.Necessity, st.Response)
	}
}

func sortedProperties(m map[model.PropertyID]model.PropertyResult) []model.PropertyID {
	ids := make([]model.PropertyID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return propertyLess(ids[i], ids[j]) })
	return ids
}

// propertyLess orders P2 before P10
func propertyLess(a, b model.PropertyID) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
