// Package export writes reconciliation candidates to xlsx or JSON files and reads
// pre-approved mappings back.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

const (
	MappingsSheet     = "Mappings"
	EliminationsSheet = "Eliminations"
)

var mappingHeader = []string{
	"Source Org", "Source Account ID", "Source Code", "Source Name", "Source Type",
	"Target Org", "Target Account ID", "Target Code", "Target Name", "Target Type",
	"Confidence", "Strategy", "Notes",
}

var eliminationHeader = []string{
	"Match Type", "Confidence", "Elimination Amount",
	"Source Org", "Source Line", "Source Date", "Source Account", "Source Amount", "Source Description",
	"Target Org", "Target Line", "Target Date", "Target Account", "Target Amount", "Target Description",
	"Notes",
}

// FileExporter chooses the format from the file extension: .xlsx or JSON for anything else
type FileExporter struct {
	logger *zap.Logger
}

// NewFileExporter creates a file exporter
func NewFileExporter(logger *zap.Logger) *FileExporter {
	return &FileExporter{logger: logger}
}

// ExportMappings writes mapping candidates to path
func (e *FileExporter) ExportMappings(path string, candidates []entity.MappingCandidate) error {
	if isXLSX(path) {
		rows := make([][]interface{}, 0, len(candidates))
		for _, c := range candidates {
			rows = append(rows, mappingRow(c))
		}
		if err := e.writeSheet(path, MappingsSheet, mappingHeader, rows); err != nil {
			return err
		}
	} else if err := writeJSON(path, candidates); err != nil {
		return err
	}

	e.logger.Info("Mappings exported", zap.String("path", path), zap.Int("count", len(candidates)))
	return nil
}

// ExportEliminations writes elimination candidates to path
func (e *FileExporter) ExportEliminations(path string, candidates []entity.EliminationCandidate) error {
	if isXLSX(path) {
		rows := make([][]interface{}, 0, len(candidates))
		for _, c := range candidates {
			rows = append(rows, eliminationRow(c))
		}
		if err := e.writeSheet(path, EliminationsSheet, eliminationHeader, rows); err != nil {
			return err
		}
	} else if err := writeJSON(path, candidates); err != nil {
		return err
	}

	e.logger.Info("Eliminations exported", zap.String("path", path), zap.Int("count", len(candidates)))
	return nil
}

// ImportMappings reads mappings from an xlsx Mappings sheet or a JSON array.
// Rows without a target account, such as exported no_match rows, are skipped and counted.
func (e *FileExporter) ImportMappings(path string) ([]entity.MappingCandidate, int, error) {
	var (
		rows []entity.MappingCandidate
		err  error
	)
	if isXLSX(path) {
		rows, err = readMappingSheet(path)
	} else {
		rows, err = readMappingJSON(path)
	}
	if err != nil {
		return nil, 0, err
	}

	out := make([]entity.MappingCandidate, 0, len(rows))
	skipped := 0
	for i, c := range rows {
		if c.Target == nil {
			e.logger.Warn("Skipping imported mapping without target account",
				zap.Int("row", i+1),
				zap.String("source_account_id", c.Source.ID))
			skipped++
			continue
		}
		switch c.Strategy {
		case entity.StrategyNoMatch:
			// the reviewer filled in a target for an unmatched account
			c.Strategy = entity.StrategyManualSelection
			c.Confidence = entity.MaxConfidence
		case "":
			c.Strategy = entity.StrategyManualSelection
		}
		c.Confidence = entity.ClampConfidence(c.Confidence)
		out = append(out, c)
	}

	e.logger.Info("Mappings imported",
		zap.String("path", path),
		zap.Int("count", len(out)),
		zap.Int("skipped", skipped))
	return out, skipped, nil
}

func (e *FileExporter) writeSheet(path, sheet string, header []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header %s: %w", cell, err)
		}
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func mappingRow(c entity.MappingCandidate) []interface{} {
	row := []interface{}{
		c.SourceOrgID, c.Source.ID, c.Source.Code, c.Source.Name, c.Source.Type,
		c.TargetOrgID, "", "", "", "",
		c.Confidence, c.Strategy, c.Notes,
	}
	if c.Target != nil {
		row[6], row[7], row[8], row[9] = c.Target.ID, c.Target.Code, c.Target.Name, c.Target.Type
	}
	return row
}

func eliminationRow(c entity.EliminationCandidate) []interface{} {
	return []interface{}{
		c.MatchType, c.Confidence, c.EliminationAmount.StringFixed(2),
		c.Source.OrgID, c.Source.ID, c.Source.Date.Format("2006-01-02"), c.Source.AccountName, c.Source.NetAmount.StringFixed(2), c.Source.Description,
		c.Target.OrgID, c.Target.ID, c.Target.Date.Format("2006-01-02"), c.Target.AccountName, c.Target.NetAmount.StringFixed(2), c.Target.Description,
		c.Notes,
	}
}

func readMappingSheet(path string) ([]entity.MappingCandidate, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(MappingsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sheet: %w", MappingsSheet, err)
	}

	out := []entity.MappingCandidate{}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cell := func(n int) string {
			if n < len(row) {
				return strings.TrimSpace(row[n])
			}
			return ""
		}
		if cell(1) == "" {
			continue
		}

		c := entity.MappingCandidate{
			SourceOrgID: cell(0),
			TargetOrgID: cell(5),
			Source:      entity.Account{ID: cell(1), OrgID: cell(0), Code: cell(2), Name: cell(3), Type: cell(4), Status: entity.AccountStatusActive},
			Strategy:    cell(11),
			Notes:       cell(12),
		}
		if cell(6) != "" {
			c.Target = &entity.Account{ID: cell(6), OrgID: cell(5), Code: cell(7), Name: cell(8), Type: cell(9), Status: entity.AccountStatusActive}
		}
		if v := cell(10); v != "" {
			conf, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid confidence %q", i+1, v)
			}
			c.Confidence = conf
		}
		out = append(out, c)
	}
	return out, nil
}

func readMappingJSON(path string) ([]entity.MappingCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mappings file: %w", err)
	}
	var out []entity.MappingCandidate
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse mappings file: %w", err)
	}
	if out == nil {
		out = []entity.MappingCandidate{}
	}
	return out, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	return nil
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

var (
	_ port.Exporter        = (*FileExporter)(nil)
	_ port.MappingImporter = (*FileExporter)(nil)
)
