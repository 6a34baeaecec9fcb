package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Veraticus/quest/internal/record"
	"github.com/xuri/excelize/v2"
)

// Format identifies the container of an import payload.
type Format string

// Supported payload formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
	// FormatSheets marks rows read from a Google Sheets range.
	FormatSheets Format = "sheets"
)

// Payload errors.
var (
	ErrPayloadParse   = errors.New("payload could not be parsed")
	ErrUnknownFormat  = errors.New("unsupported payload format")
	ErrTooManyRows    = errors.New("too many rows")
	ErrEmptyPayload   = errors.New("payload is empty")
	ErrMissingColumns = errors.New("no recognized columns")
)

// PayloadParseError reports a payload that failed as a whole. No rows were processed.
type PayloadParseError struct {
	Err    error
	Format Format
}

func (e *PayloadParseError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("%s: %v", ErrPayloadParse, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrPayloadParse, e.Format, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *PayloadParseError) Unwrap() error {
	return e.Err
}

// Is matches ErrPayloadParse.
func (e *PayloadParseError) Is(target error) bool {
	return target == ErrPayloadParse
}

func parseError(format Format, err error) error {
	return &PayloadParseError{Format: format, Err: err}
}

// columnAliases maps normalized header spellings to canonical field names.
var columnAliases = map[string]string{
	"company":            record.FieldCompany,
	"company name":       record.FieldCompany,
	"employer":           record.FieldCompany,
	"position":           record.FieldPosition,
	"position title":     record.FieldPosition,
	"job title":          record.FieldPosition,
	"role":               record.FieldPosition,
	"title":              record.FieldPosition,
	"status":             record.FieldStatus,
	"application status": record.FieldStatus,
	"state":              record.FieldStatus,
	"applied_date":       record.FieldAppliedDate,
	"applied date":       record.FieldAppliedDate,
	"date applied":       record.FieldAppliedDate,
	"application date":   record.FieldAppliedDate,
	"date":               record.FieldAppliedDate,
	"notes":              record.FieldNotes,
	"details":            record.FieldNotes,
	"comments":           record.FieldNotes,
	"description":        record.FieldNotes,
}

// CanonicalColumn maps a header to its field name. Unknown headers are returned normalized.
func CanonicalColumn(header string) string {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	if field, ok := columnAliases[normalized]; ok {
		return field
	}
	return normalized
}

// FormatFromFilename picks the format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (use .csv, .xlsx or .json)", ErrUnknownFormat, filepath.Ext(name))
	}
}

// Parse normalizes a payload into raw rows. Any failure is a *PayloadParseError.
func Parse(format Format, r io.Reader) ([]record.RawRow, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatXLSX:
		return ParseXLSX(r)
	case FormatJSON:
		return ParseJSON(r)
	default:
		return nil, parseError(format, fmt.Errorf("%w: %q", ErrUnknownFormat, format))
	}
}

// ParseCSV reads delimited text with a header row.
func ParseCSV(r io.Reader) ([]record.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	table, err := reader.ReadAll()
	if err != nil {
		return nil, parseError(FormatCSV, err)
	}

	rows, err := RowsFromTable(table)
	if err != nil {
		return nil, parseError(FormatCSV, err)
	}
	return rows, nil
}

// ParseXLSX reads the first worksheet of a workbook. The first row is the header.
func ParseXLSX(r io.Reader) ([]record.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, parseError(FormatXLSX, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, parseError(FormatXLSX, ErrEmptyPayload)
	}

	table, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, parseError(FormatXLSX, err)
	}

	rows, err := RowsFromTable(table)
	if err != nil {
		return nil, parseError(FormatXLSX, err)
	}
	return rows, nil
}

// ParseJSON reads a JSON array of row-shaped objects.
func ParseJSON(r io.Reader) ([]record.RawRow, error) {
	var items []map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, parseError(FormatJSON, ErrEmptyPayload)
		}
		return nil, parseError(FormatJSON, fmt.Errorf("expected an array of objects: %w", err))
	}

	rows := make([]record.RawRow, len(items))
	for i, item := range items {
		row := make(record.RawRow, len(item))
		exact := make(map[string]bool, len(item))
		// Keys are visited in sorted order; an exact field name beats any alias,
		// otherwise the first alias wins.
		for _, key := range slices.Sorted(maps.Keys(item)) {
			name := CanonicalColumn(key)
			isExact := isField(strings.ToLower(strings.TrimSpace(key)))
			if _, taken := row[name]; taken && (exact[name] || !isExact) {
				continue
			}
			row[name] = stringify(item[key])
			exact[name] = isExact
		}
		rows[i] = row
	}
	return rows, nil
}

// ParseTable converts a table already read from a source such as a spreadsheet API.
// Any failure is a *PayloadParseError.
func ParseTable(format Format, table [][]string) ([]record.RawRow, error) {
	rows, err := RowsFromTable(table)
	if err != nil {
		return nil, parseError(format, err)
	}
	return rows, nil
}

// RowsFromTable converts a header row plus data rows into raw rows.
// A blank row becomes a nil entry so later rows keep their input position.
func RowsFromTable(table [][]string) ([]record.RawRow, error) {
	if len(table) == 0 {
		return nil, ErrEmptyPayload
	}

	header := make([]string, len(table[0]))
	known := false
	for i, h := range table[0] {
		header[i] = CanonicalColumn(h)
		if isField(header[i]) {
			known = true
		}
	}
	if !known {
		return nil, fmt.Errorf("%w in header %v", ErrMissingColumns, table[0])
	}

	rows := make([]record.RawRow, 0, len(table)-1)
	for _, cells := range table[1:] {
		if blank(cells) {
			rows = append(rows, nil)
			continue
		}
		row := make(record.RawRow, len(header))
		for i, name := range header {
			if name == "" || i >= len(cells) {
				continue
			}
			// The first column mapped to a field wins.
			if _, taken := row[name]; !taken {
				row[name] = cells[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isField(name string) bool {
	for _, c := range record.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
