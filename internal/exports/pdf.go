// Package exports renders the dashboard's canonical registrations as a PDF and serves export
// requests, either inline or through the background job queue.
package exports

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/aura-events/regreview/internal/dashboard"
	"github.com/aura-events/regreview/internal/models"
)

const (
	fontFamily   = "Helvetica"
	rowHeight    = 7.0
	headerHeight = 8.0
	pageMargin   = 10.0
	footerSpace  = 18.0
)

type column struct {
	title string
	width float64
	value func(models.CanonicalRecord, *time.Location) string
}

// Column widths add up to the printable A4 portrait width.
var columns = []column{
	{"Name", 34, func(r models.CanonicalRecord, _ *time.Location) string {
		return strings.TrimSpace(r.FirstName + " " + r.LastName)
	}},
	{"Email", 48, func(r models.CanonicalRecord, _ *time.Location) string { return r.Email }},
	{"Phone", 26, func(r models.CanonicalRecord, _ *time.Location) string { return r.Phone }},
	{"Country", 22, func(r models.CanonicalRecord, _ *time.Location) string { return r.Country }},
	{"Status", 18, func(r models.CanonicalRecord, _ *time.Location) string { return statusLabel(r.Status) }},
	{"Submitted", 28, func(r models.CanonicalRecord, loc *time.Location) string {
		return FormatSubmitted(r.SubmissionTime, loc)
	}},
	{"History", 14, func(r models.CanonicalRecord, _ *time.Location) string {
		return strconv.Itoa(len(r.History))
	}},
}

// FileName returns the download name of an export generated at t.
func FileName(t time.Time) string {
	return "Registrations_" + t.Format("2006-01-02") + ".pdf"
}

// FormatSubmitted formats an epoch-millisecond submission time; the sentinel 0 prints as N/A.
func FormatSubmitted(ms int64, loc *time.Location) string {
	if ms == 0 {
		return "N/A"
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format("2006-01-02 15:04")
}

func statusLabel(s models.Status) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Renderer writes export documents.
type Renderer struct {
	title string
	loc   *time.Location
}

// NewRenderer creates a renderer. Dates are printed in loc, UTC when nil.
func NewRenderer(title string, loc *time.Location) *Renderer {
	if title == "" {
		title = "Registrations"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{title: title, loc: loc}
}

// FileName returns the download name of an export generated at t, dated in the renderer's
// timezone.
func (r *Renderer) FileName(t time.Time) string {
	return FileName(t.In(r.loc))
}

// Render writes the records of snap that match its query and filter as an A4 portrait PDF and
// returns how many rows were written.
func (r *Renderer) Render(w io.Writer, snap dashboard.Snapshot, at time.Time) (int, error) {
	rows := snap.Filtered()
	generated := at.In(r.loc).Format("2006-01-02 15:04 MST")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, footerSpace)
	pdf.AliasNbPages("")
	pdf.SetTitle(r.title, false)
	pdf.SetCreator("regreview", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	inTable := false
	pdf.SetHeaderFunc(func() {
		if inTable {
			drawTableHeader(pdf, tr)
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(95, 6, tr("Generated on "+generated), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(r.title), "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(0, 5, tr("Generated at "+generated), "", 1, "L", false, 0, "")
	c := snap.Counts
	pdf.CellFormat(0, 5, fmt.Sprintf("Total: %d   Pending: %d   Approved: %d   Rejected: %d",
		c.Total, c.Pending, c.Approved, c.Rejected), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(describeSelection(snap, len(rows))), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	inTable = true
	drawTableHeader(pdf, tr)

	pdf.SetFont(fontFamily, "", 8)
	pdf.SetTextColor(0, 0, 0)
	if len(rows) == 0 {
		pdf.CellFormat(0, rowHeight, "No registrations", "1", 1, "C", false, 0, "")
	}
	for i, rec := range rows {
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)
		for _, col := range columns {
			text := fit(pdf, tr(col.value(rec, r.loc)), col.width-2)
			pdf.CellFormat(col.width, rowHeight, text, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("render pdf: %w", err)
	}
	return len(rows), nil
}

func drawTableHeader(pdf *fpdf.Fpdf, tr func(string) string) {
	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(52, 73, 94)
	pdf.SetTextColor(255, 255, 255)
	for _, col := range columns {
		pdf.CellFormat(col.width, headerHeight, tr(col.title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(fontFamily, "", 8)
	pdf.SetTextColor(0, 0, 0)
}

func describeSelection(snap dashboard.Snapshot, n int) string {
	parts := []string{fmt.Sprintf("Showing %d", n)}
	if snap.Filter != "" && snap.Filter != dashboard.FilterAll {
		parts = append(parts, "status "+string(snap.Filter))
	}
	if snap.Query != "" {
		parts = append(parts, fmt.Sprintf("matching %q", snap.Query))
	}
	return strings.Join(parts, ", ")
}

// fit shortens s with an ellipsis until it fits width. s is already translated to a
// single-byte code page.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for n := len(s) - 1; n > 0; n-- {
		candidate := s[:n] + "..."
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}
