package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"prozorro/internal"
)

// ExportEntitiesToXLSX writes built entities to a spreadsheet for manual
// inspection, one row per entity.
func ExportEntitiesToXLSX(entities []*internal.Entity, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"schema", "id", "name", "title", "full",
		"amount", "currency", "status", "role",
		"authority", "supplier", "contract", "addressEntity",
		"classification", "sourceUrl", "summary",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, entity := range entities {
		r := i + 2
		set := func(col int, value string) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, entity.Schema)
		set(2, entity.ID)
		set(3, joined(entity, "name"))
		set(4, joined(entity, "title"))
		set(5, joined(entity, "full"))
		set(6, joined(entity, "amount"))
		set(7, joined(entity, "currency"))
		set(8, joined(entity, "status"))
		set(9, joined(entity, "role"))
		set(10, joined(entity, "authority"))
		set(11, joined(entity, "supplier"))
		set(12, joined(entity, "contract"))
		set(13, joined(entity, "addressEntity"))
		set(14, joined(entity, "classification"))
		set(15, joined(entity, "sourceUrl"))
		set(16, joined(entity, "summary"))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func joined(e *internal.Entity, prop string) string {
	return strings.Join(e.Properties[prop], "; ")
}
