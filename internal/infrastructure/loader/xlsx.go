package loader

import (
	"fmt"
	"strings"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/xuri/excelize/v2"
)

// loadXLSX renders one page per sheet, cells joined by tabs and rows by
// newlines, keeping tabular neighborhoods intact for chunking.
func loadXLSX(path string) ([]domain.Page, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	pages := make([]domain.Page, 0, len(sheets))
	for i, sheet := range sheets {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		lines := make([]string, 0, len(rows)+1)
		lines = append(lines, sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 1 {
			continue
		}
		pages = append(pages, domain.Page{Number: i + 1, Content: strings.Join(lines, "\n")})
	}
	return pages, nil
}
