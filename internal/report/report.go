// Package report exports learning progress as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-portal/internal/catalog"
	"github.com/p-n-ai/pai-portal/internal/learning"
)

const (
	ProgressSheet = "Progress"
	SummarySheet  = "Summary"
)

var progressHeader = []any{"Module", "Name", "Category", "Difficulty", "Completion (%)", "Topics Completed", "Topics Total"}

// WriteProgress writes an .xlsx workbook with one Progress row per module and
// a Summary sheet of the aggregate stats.
func WriteProgress(w io.Writer, stats learning.Stats, modules []catalog.Module) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ProgressSheet); err != nil {
		return fmt.Errorf("naming progress sheet: %w", err)
	}
	if err := f.SetSheetRow(ProgressSheet, "A1", &progressHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, m := range modules {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{m.ID, m.Name, m.Category, m.Difficulty, m.Completion, m.CompletedTopics(), m.TopicCount}
		if err := f.SetSheetRow(ProgressSheet, cell, &row); err != nil {
			return fmt.Errorf("writing module %s: %w", m.ID, err)
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	summary := [][]any{
		{"Metric", "Value"},
		{"Completed Modules", stats.CompletedModules},
		{"Current Streak (days)", stats.CurrentStreak},
		{"Total Time Spent (minutes)", stats.TotalTimeSpent},
		{"Overall Progress (%)", stats.OverallProgress},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
