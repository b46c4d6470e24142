package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
)

func renderRecord(w io.Writer, rec domain.JobRecord) {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")

	table.Append("Job ID", string(rec.ID))
	if rec.Kind != "" {
		table.Append("Kind", string(rec.Kind))
	}
	if rec.Name != "" {
		table.Append("Name", rec.Name)
	}
	table.Append("Status", string(rec.Status))
	table.Append("Progress", formatProgress(rec.Progress))
	table.Append("Outcome", string(rec.Outcome))
	if rec.OutputURL != "" {
		table.Append("Output URL", rec.OutputURL)
	}
	if rec.Error != "" {
		table.Append("Error", rec.Error)
	}
	table.Append("Updated", formatTime(rec.UpdatedAt))

	table.Render()
}

func renderRecords(w io.Writer, recs []domain.JobRecord) {
	table := tablewriter.NewWriter(w)
	table.Header("Job ID", "Kind", "Name", "Status", "Progress", "Outcome", "Output / Error", "Submitted")

	for _, r := range recs {
		detail := r.OutputURL
		if r.Error != "" {
			detail = r.Error
		}
		kind := string(r.Kind)
		if kind == "" {
			kind = "-"
		}
		table.Append(
			string(r.ID),
			kind,
			r.Name,
			string(r.Status),
			formatProgress(r.Progress),
			string(r.Outcome),
			detail,
			formatTime(r.SubmittedAt),
		)
	}

	table.Render()
}

func formatProgress(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *p)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
