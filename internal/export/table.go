package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/toricodesthings/wordcloud-service/internal/wordfreq"
)

const (
	CSVFileName  = "word_count.csv"
	XLSXFileName = "word_count.xlsx"
	sheetName    = "Word Count"
)

var tableHeader = []string{"Word", "Count"}

type TableFormat string

const (
	CSV  TableFormat = "csv"
	XLSX TableFormat = "xlsx"
)

func ParseTableFormat(s string) (TableFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return CSV, nil
	case "xlsx", "excel":
		return XLSX, nil
	default:
		return "", fmt.Errorf("unsupported table format %q (want csv or xlsx)", s)
	}
}

// EncodeTable writes the frequency table in the requested format.
func EncodeTable(t wordfreq.Table, f TableFormat) (Artifact, error) {
	switch f {
	case CSV:
		return EncodeCSV(t)
	case XLSX:
		return EncodeXLSX(t)
	default:
		return Artifact{}, fmt.Errorf("unsupported table format %q", f)
	}
}

// EncodeCSV writes a Word,Count header followed by one row per entry in
// table order.
func EncodeCSV(t wordfreq.Table) (Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(tableHeader); err != nil {
		return Artifact{}, fmt.Errorf("write csv: %w", err)
	}
	for _, e := range t {
		if err := w.Write([]string{e.Word, strconv.Itoa(e.Count)}); err != nil {
			return Artifact{}, fmt.Errorf("write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Artifact{}, fmt.Errorf("write csv: %w", err)
	}
	return Artifact{FileName: CSVFileName, ContentType: "text/csv; charset=utf-8", Data: buf.Bytes()}, nil
}

// DecodeCSV reads a table written by EncodeCSV.
func DecodeCSV(r io.Reader) (wordfreq.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if header[0] != tableHeader[0] || header[1] != tableHeader[1] {
		return nil, fmt.Errorf("unexpected csv header %q", header)
	}

	table := wordfreq.Table{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		n, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("csv count for %q: %w", rec[0], err)
		}
		table = append(table, wordfreq.Entry{Word: rec[0], Count: n})
	}
}

// formatHeader bolds the header row and widens the word column.
func formatHeader(f *excelize.File, sheet string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", style); err != nil {
		return fmt.Errorf("xlsx header style: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 32); err != nil {
		return fmt.Errorf("xlsx column width: %w", err)
	}
	return nil
}

// EncodeXLSX writes the same rows as EncodeCSV into a single worksheet.
func EncodeXLSX(t wordfreq.Table) (Artifact, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return Artifact{}, fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &[]any{tableHeader[0], tableHeader[1]}); err != nil {
		return Artifact{}, fmt.Errorf("xlsx header: %w", err)
	}
	if err := formatHeader(f, sheetName); err != nil {
		return Artifact{}, err
	}

	for i, e := range t {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return Artifact{}, fmt.Errorf("xlsx cell: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &[]any{e.Word, e.Count}); err != nil {
			return Artifact{}, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Artifact{}, fmt.Errorf("xlsx write: %w", err)
	}
	return Artifact{
		FileName:    XLSXFileName,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}
