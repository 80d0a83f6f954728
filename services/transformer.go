package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leiloes-caixa/config"
	"leiloes-caixa/models"
	"leiloes-caixa/parser"
	"leiloes-caixa/storage"
	"leiloes-caixa/utils"
)

const (
	scratchRawName   = "temp-raw.csv"
	scratchCleanName = "temp-clean.csv"
)

// Transformer turns an archived raw export into a table holding only
// complete rows. It reuses two fixed scratch files, so calls must not
// overlap.
type Transformer struct {
	gateway    *storage.Gateway
	writer     *storage.CSVWriter
	opts       parser.Options
	scratchDir string
	logger     *utils.Logger
}

// NewTransformer creates a Transformer with the configured dialect, bad-line
// policy and encodings.
func NewTransformer(cfg *config.Config, gateway *storage.Gateway, logger *utils.Logger) *Transformer {
	return &Transformer{
		gateway:    gateway,
		writer:     storage.NewCSVWriter(),
		opts:       cfg.ParserOptions(),
		scratchDir: cfg.ScratchDir,
		logger:     logger,
	}
}

// Transform downloads sourceKey, removes incomplete rows and returns the path
// of the cleaned local file.
func (t *Transformer) Transform(ctx context.Context, sourceKey string) (string, error) {
	res, err := t.TransformDetailed(ctx, sourceKey)
	if err != nil {
		return "", err
	}
	return res.LocalPath, nil
}

// TransformDetailed is Transform returning row counts, columns and the
// encoding that decoded the export.
func (t *Transformer) TransformDetailed(ctx context.Context, sourceKey string) (*models.CleanedTable, error) {
	rawPath := filepath.Join(t.scratchDir, scratchRawName)
	cleanPath := filepath.Join(t.scratchDir, scratchCleanName)

	// A failed run must not leave the previous run's output looking current.
	if err := os.Remove(cleanPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("transform: clear scratch: %w", err)
	}

	if err := t.gateway.Get(ctx, sourceKey, rawPath); err != nil {
		return nil, fmt.Errorf("transform: fetch %s: %w", sourceKey, err)
	}

	data, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, fmt.Errorf("transform: read %s: %w", rawPath, err)
	}

	res, err := parser.Read(data, t.opts)
	if err != nil {
		t.logger.Error("[transform] Could not parse %s: %v", sourceKey, err)
		return nil, fmt.Errorf("transform: %s: %w", sourceKey, err)
	}
	if res.SkippedRows > 0 {
		t.logger.Warn("[transform] Skipped %d malformed rows in %s", res.SkippedRows, sourceKey)
	}

	table := res.Table
	rawRows := table.RowCount()
	dropped := Cleanse(table)

	if err := t.writer.Write(cleanPath, table); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	t.logger.Info("[transform] Cleaned %s: %d → %d rows (dropped %d, encoding %s)",
		sourceKey, rawRows, table.RowCount(), dropped, res.Encoding)

	return &models.CleanedTable{
		SourceKey:   sourceKey,
		LocalPath:   cleanPath,
		Columns:     table.Columns,
		Encoding:    string(res.Encoding),
		RawRows:     rawRows,
		RowCount:    table.RowCount(),
		DroppedRows: dropped,
	}, nil
}

// Cleanse removes, in place, every row with at least one empty or
// whitespace-only field and returns how many rows were removed. Surviving
// rows keep their relative order.
func Cleanse(table *models.Table) int {
	kept := table.Rows[:0]
	for _, row := range table.Rows {
		if complete(row) {
			kept = append(kept, row)
		}
	}
	dropped := len(table.Rows) - len(kept)
	for i := len(kept); i < len(table.Rows); i++ {
		table.Rows[i] = nil
	}
	table.Rows = kept
	return dropped
}

func complete(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}
