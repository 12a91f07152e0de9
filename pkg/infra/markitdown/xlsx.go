package markitdown

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// xlsxConverter renders every sheet as "## <name>" followed by a table whose
// header is the sheet's first row.
type xlsxConverter struct{}

func NewXlsxConverter() DocumentConverter {
	return &xlsxConverter{}
}

func (c *xlsxConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".xlsx", ".xlsm") || info.MIMEType == xlsxMIME
}

func (c *xlsxConverter) Convert(ctx context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		sb.WriteString("## " + sheet + "\n")
		if table := renderTable(trimEmptyRows(rows)); table != "" {
			sb.WriteString(table)
		}
		sb.WriteString("\n")
	}
	return &Result{Markdown: sb.String()}, nil
}

func trimEmptyRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
