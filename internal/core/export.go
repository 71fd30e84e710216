package core

// export.go renders the product backlog for download.
//
// CSV layout (spreadsheet-friendly for ru-RU locales):
//
//	Barcode;Product Name;Retail Price;Category;Unit of Measure
//	4607159730018;"Молоко ""Домик в деревне""";89.90;Молочные продукты;шт.
//
// Only the product name is quoted, with embedded quotes doubled. Rows are
// separated by a bare "\n" and the last row has no terminator.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrNothingToExport is returned when the backlog is empty.
	ErrNothingToExport = errors.New("nothing to export")
	// ErrUnknownFormat is returned by ParseFormat for unsupported names.
	ErrUnknownFormat = errors.New("unknown export format")
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name, defaulting to CSV when empty.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// ExportFilename returns the download name for an export made at now,
// e.g. products_2025-01-31.csv. The date is taken in UTC.
func ExportFilename(f Format, now time.Time) string {
	return fmt.Sprintf("products_%s.%s", now.UTC().Format("2006-01-02"), f)
}

const (
	csvBOM       = "\uFEFF"
	csvSeparator = ";"
)

var csvHeader = []string{"Barcode", "Product Name", "Retail Price", "Category", "Unit of Measure"}

// WriteExport writes products in the given format.
func WriteExport(w io.Writer, f Format, products []Product) error {
	if len(products) == 0 {
		return ErrNothingToExport
	}
	if f == FormatJSON {
		return WriteJSON(w, products)
	}
	return WriteCSV(w, products)
}

// WriteCSV writes the semicolon-separated export with a UTF-8 BOM.
func WriteCSV(w io.Writer, products []Product) error {
	var b strings.Builder
	b.WriteString(csvBOM)
	b.WriteString(strings.Join(csvHeader, csvSeparator))
	for _, p := range products {
		b.WriteByte('\n')
		b.WriteString(CSVRow(p.Export()))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// CSVRow formats one record as a CSV line without terminator.
func CSVRow(r ExportRecord) string {
	return strings.Join([]string{
		r.Barcode,
		`"` + strings.ReplaceAll(r.ProductName, `"`, `""`) + `"`,
		r.RetailPrice,
		r.Category,
		r.UnitOfMeasure,
	}, csvSeparator)
}

// WriteJSON writes the export records as a JSON array indented by two spaces.
func WriteJSON(w io.Writer, products []Product) error {
	records := make([]ExportRecord, len(products))
	for i, p := range products {
		records[i] = p.Export()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}
