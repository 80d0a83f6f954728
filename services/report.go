package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jszwec/csvutil"

	"leiloes-caixa/models"
	"leiloes-caixa/storage"
	"leiloes-caixa/utils"
)

type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate totals the records of one batch.
func (s *ReportService) Generate(records []*models.RunRecord) *models.RunReport {
	report := &models.RunReport{Records: records}

	for _, r := range records {
		report.Regions++
		if r.Failed() {
			report.Failed++
			continue
		}
		report.Succeeded++
		report.RawRows += r.RawRows
		report.CleanRows += r.CleanRows
		report.DroppedRows += r.RawRows - r.CleanRows
	}
	return report
}

// History loads the recorded runs from ledger and totals them. A non-empty
// region keeps only that region's runs.
func (s *ReportService) History(ctx context.Context, ledger storage.RunLedger, region models.RegionCode) (*models.RunReport, error) {
	records, err := ledger.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("report: history: %w", err)
	}
	if region != "" {
		kept := records[:0]
		for _, r := range records {
			if r.Region == region {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	s.logger.Debug("[report] %d recorded runs loaded", len(records))
	return s.Generate(records), nil
}

// Print renders one line per region followed by the batch totals.
func (s *ReportService) Print(w io.Writer, r *models.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Caixa listings: %d regions, %d ok, %d failed", r.Regions, r.Succeeded, r.Failed)
	t.AppendHeader(table.Row{"Region", "Date", "Status", "Stage", "Raw rows", "Clean rows", "Integrated key", "Took", "Error"})

	for _, rec := range r.Records {
		t.AppendRow(table.Row{
			rec.Region,
			rec.RunDate,
			rec.Status,
			rec.Stage,
			rec.RawRows,
			rec.CleanRows,
			rec.IntegratedKey,
			rec.Duration.Round(time.Millisecond),
			truncate(rec.Error, 60),
		})
	}

	t.AppendFooter(table.Row{"Total", "", "", "", r.RawRows, r.CleanRows, fmt.Sprintf("%d rows dropped", r.DroppedRows), "", ""})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// WriteCSV stores the per-region records at path, creating parent dirs.
func (s *ReportService) WriteCSV(path string, records []*models.RunRecord) error {
	data, err := csvutil.Marshal(records)
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("report: create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("report: write %q: %w", path, err)
	}
	s.logger.Info("[report] Run report written to %s", path)
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
