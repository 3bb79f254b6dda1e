// Package renderer prints scan results for the terminal, mirroring the
// sections of the web dashboard.
package renderer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/kestrelsec/graphaudit/internal/database"
	"github.com/kestrelsec/graphaudit/pkg/audit"
	"github.com/kestrelsec/graphaudit/pkg/fingerprint"
	"github.com/kestrelsec/graphaudit/pkg/schema"
)

// Renderer writes human-readable sections to a single writer.
type Renderer struct {
	writer io.Writer

	positive *color.Color
	negative *color.Color
	heading  *color.Color
	muted    *color.Color
}

func New(writer io.Writer, noColor bool) *Renderer {
	r := &Renderer{
		writer:   writer,
		positive: color.New(color.FgRed, color.Bold),
		negative: color.New(color.FgGreen),
		heading:  color.New(color.FgCyan, color.Bold),
		muted:    color.New(color.FgHiBlack),
	}
	if noColor {
		for _, c := range []*color.Color{r.positive, r.negative, r.heading, r.muted} {
			c.DisableColor()
		}
	}
	return r
}

func (r *Renderer) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

// Findings prints the audit section: a positive-count summary, one line per
// finding, then the full findings list as pretty JSON so nothing rendered
// loses detail against the raw response.
func (r *Renderer) Findings(findings []audit.Finding) {
	positive := audit.PositiveCount(findings)

	r.printf("%s\n", r.heading.Sprint("Security Findings"))
	r.printf("%d positive out of %d checks\n\n", positive, len(findings))

	for _, f := range findings {
		marker := r.negative.Sprint("[-]")
		if f.Result {
			marker = r.positive.Sprint("[+]")
		}
		r.printf("%s %s [%s]\n", marker, f.Title, f.Severity)
	}
	if len(findings) > 0 {
		r.printf("\n")
		if data, err := json.MarshalIndent(findings, "", "  "); err == nil {
			r.printf("%s\n", data)
		}
	}
	r.printf("\n")
}

// Engine prints the fingerprint section: the engine name with its confidence
// score, then the engine's security notes in order.
func (r *Renderer) Engine(report fingerprint.Report) {
	r.printf("%s\n", r.heading.Sprint("Engine Fingerprint"))
	r.printf("%s (confidence %d)\n", report.Engine, report.Confidence)

	for _, note := range report.SecurityNotes {
		r.printf("  - %s\n", note)
	}
	r.printf("\n")
}

// Banner prints the raw fingerprinting output line by line.
func (r *Renderer) Banner(output string) {
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		r.printf("%s\n", line)
	}
	r.printf("\n")
}

// Objects prints the schema section: an object-type count followed by one
// card per type with its fields on a single line.
func (r *Renderer) Objects(summary schema.Summary) {
	r.printf("%s\n", r.heading.Sprint("Schema Objects"))
	r.printf("Loaded %d object types\n\n", summary.ObjectCount)

	for _, obj := range summary.Objects {
		r.printf("  %s (%d fields)\n", obj.Name, obj.FieldCount)
		if len(obj.Fields) > 0 {
			r.printf("    %s\n", strings.Join(obj.Fields, ", "))
		}
	}
	r.printf("\n")
}

// Graph prints the node and edge counts of the schema graph.
func (r *Renderer) Graph(summary schema.Summary) {
	r.printf("Graph: %d nodes, %d edges\n\n", len(summary.Graph.Nodes), len(summary.Graph.Edges))
}

// Reports prints the stored report history.
func (r *Renderer) Reports(summaries []database.ReportSummary) {
	r.printf("%s\n", r.heading.Sprint("Report History"))
	if len(summaries) == 0 {
		r.printf("No reports stored.\n\n")
		return
	}

	for _, s := range summaries {
		r.printf("%s  %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"), s.ID)
		r.printf("    %s  %s (confidence %d), %d/%d positive findings\n",
			s.Target, s.Engine, s.Confidence, s.PositiveFindings, s.TotalFindings)
	}
	r.printf("\n")
}

// JSON pretty-prints any value with two-space indentation.
func (r *Renderer) JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	r.printf("%s\n", data)
	return nil
}

// Error prints a section-level failure without aborting the rest of the run.
func (r *Renderer) Error(section string, err error) {
	r.printf("%s\n", r.heading.Sprint(section))
	r.printf("%s\n\n", r.positive.Sprintf("error: %v", err))
}
