package docsource

import (
	"bufio"
	"fmt"
	"io"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/go-pdf/fpdf"
)

// RenderSchedulePDF writes a campaign programme PDF laid out in the block
// format the extractor reads. It is used for fixtures and local testing.
func RenderSchedulePDF(w io.Writer, heading string, events []domain.CandidateEvent) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(heading, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252 for the core fonts

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(heading), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, ev := range events {
		for _, l := range blockLines(ev) {
			pdf.CellFormat(0, 6, tr(l), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render schedule pdf: %w", err)
	}
	return nil
}

// RenderScheduleText writes the same programme as plain text.
func RenderScheduleText(w io.Writer, heading string, events []domain.CandidateEvent) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n\n", heading)
	for _, ev := range events {
		for _, l := range blockLines(ev) {
			fmt.Fprintln(bw, l)
		}
		fmt.Fprintln(bw)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("render schedule text: %w", err)
	}
	return nil
}

func blockLines(ev domain.CandidateEvent) []string {
	lines := []string{
		"Date: " + ev.Date,
		"Candidate: " + ev.Candidate,
		"District: " + ev.District,
		"Venue: " + ev.VenueName,
	}
	if ev.Time != "" {
		lines = append(lines, "Time: "+ev.Time)
	}
	return lines
}
