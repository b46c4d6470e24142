package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/internal/core/ports"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

const (
	historySheet = "History"
	summarySheet = "Summary"
)

// HistoryExporter renders the job history as an XLSX workbook.
type HistoryExporter struct {
	repo   ports.Repository
	logger *slog.Logger
}

func NewHistoryExporter(repo ports.Repository, logger *slog.Logger) *HistoryExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryExporter{repo: repo, logger: logger}
}

// ExportXLSX returns the workbook bytes for records matching filter. The
// workbook has a History sheet (one row per job) and a Summary sheet
// (job counts per kind and outcome).
func (e *HistoryExporter) ExportXLSX(ctx context.Context, filter domain.JobFilter) ([]byte, error) {
	start := time.Now()

	recs, err := e.repo.ListJobRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	if err := writeHistorySheet(f, recs); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, recs); err != nil {
		return nil, err
	}

	index, _ := f.GetSheetIndex(historySheet)
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("history.export.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

var historyHeaders = []string{
	"Job ID",
	"Kind",
	"Name",
	"Status",
	"Progress %",
	"Outcome",
	"Output URL",
	"Error",
	"Submitted (UTC)",
	"Updated (UTC)",
}

func writeHistorySheet(f *excelize.File, recs []domain.JobRecord) error {
	if err := writeRow(f, historySheet, 1, toAny(historyHeaders)); err != nil {
		return err
	}

	for i, r := range recs {
		var progress any = ""
		if r.Progress != nil {
			progress = *r.Progress
		}
		row := []any{
			string(r.ID),
			kindLabel(r.Kind),
			r.Name,
			string(r.Status),
			progress,
			string(r.Outcome),
			r.OutputURL,
			r.Error,
			r.SubmittedAt.UTC().Format(time.DateTime),
			r.UpdatedAt.UTC().Format(time.DateTime),
		}
		if err := writeRow(f, historySheet, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(historySheet, "A", "A", 24) // id
	_ = f.SetColWidth(historySheet, "B", "F", 14)
	_ = f.SetColWidth(historySheet, "G", "G", 60) // url
	_ = f.SetColWidth(historySheet, "H", "H", 40) // error
	_ = f.SetColWidth(historySheet, "I", "J", 20) // timestamps
	return nil
}

func writeSummarySheet(f *excelize.File, recs []domain.JobRecord) error {
	outcomes := []isamurai.Outcome{
		isamurai.OutcomeSucceeded,
		isamurai.OutcomeFailed,
		isamurai.OutcomeTimedOut,
		isamurai.OutcomeError,
		isamurai.OutcomePolling,
	}

	counts := map[string]map[isamurai.Outcome]int{}
	for _, r := range recs {
		k := kindLabel(r.Kind)
		if counts[k] == nil {
			counts[k] = map[isamurai.Outcome]int{}
		}
		counts[k][r.Outcome]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	header := []any{"Kind"}
	for _, o := range outcomes {
		header = append(header, string(o))
	}
	header = append(header, "total")
	if err := writeRow(f, summarySheet, 1, header); err != nil {
		return err
	}

	for i, k := range kinds {
		row := []any{k}
		total := 0
		for _, o := range outcomes {
			row = append(row, counts[k][o])
			total += counts[k][o]
		}
		row = append(row, total)
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 16)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func kindLabel(k isamurai.JobKind) string {
	if k == "" {
		return "untracked"
	}
	return string(k)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
