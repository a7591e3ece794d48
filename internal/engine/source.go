package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// LoadError is fatal: a source could not be fetched, parsed, or lacks a
// column the join needs.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LookupEncoding maps a configured CSV encoding name to a decoder. UTF-8
// returns nil, meaning no transcoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("unsupported csv encoding %q", name)
}

// sheet is a parsed source table: a header and its data rows.
type sheet struct {
	source string
	header map[string]int
	rows   [][]string
}

func newSheet(source string, records [][]string) (*sheet, error) {
	if len(records) == 0 {
		return nil, errors.New("empty sheet: no header row found")
	}
	s := &sheet{source: source, header: make(map[string]int, len(records[0]))}
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if _, dup := s.header[h]; !dup && h != "" {
			s.header[h] = i
		}
	}
	for _, row := range records[1:] {
		if !blankRow(row) {
			s.rows = append(s.rows, row)
		}
	}
	return s, nil
}

// col resolves a required column.
func (s *sheet) col(name string) (int, error) {
	idx, ok := s.header[name]
	if !ok {
		return 0, &LoadError{Source: s.source, Err: fmt.Errorf("missing required column %q", name)}
	}
	return idx, nil
}

// cell returns the trimmed value at idx; short rows read as empty.
func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// formatOf returns the lower-cased file extension of a path or URL.
func formatOf(location string) string {
	p := location
	if isRemote(location) {
		if u, err := url.Parse(location); err == nil {
			p = u.Path
		}
	}
	return strings.ToLower(path.Ext(p))
}

// fetch reads location from the network or the loader filesystem.
func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	if !isRemote(location) {
		return afero.ReadFile(l.fs, location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// readSheet fetches and parses one source. Every failure is a *LoadError.
func (l *Loader) readSheet(ctx context.Context, location string) (*sheet, error) {
	data, err := l.fetch(ctx, location)
	if err != nil {
		return nil, &LoadError{Source: location, Err: err}
	}

	var records [][]string
	switch ext := formatOf(location); ext {
	case ".xlsx", ".xlsm":
		records, err = parseXLSX(data)
	case ".csv", ".txt":
		records, err = parseCSV(data, l.csvEnc)
	default:
		err = fmt.Errorf("unsupported format %q", ext)
	}
	if err != nil {
		return nil, &LoadError{Source: location, Err: err}
	}

	s, err := newSheet(location, records)
	if err != nil {
		return nil, &LoadError{Source: location, Err: err}
	}
	return s, nil
}

// parseXLSX reads the first worksheet. Raw cell values are requested so
// dates arrive as Excel serial numbers instead of locale formatted text.
func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// parseCSV decodes enc (nil for UTF-8), strips a BOM and sniffs a ';'
// delimiter from the header line.
func parseCSV(data []byte, enc encoding.Encoding) ([][]string, error) {
	if enc != nil {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		data = decoded
	}
	data = bytes.TrimPrefix(data, bomUTF8)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	headerLine := data
	if i := bytes.IndexByte(data, '\n'); i != -1 {
		headerLine = data[:i]
	}
	if bytes.Count(headerLine, []byte{';'}) > bytes.Count(headerLine, []byte{','}) {
		reader.Comma = ';'
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"2/1/06",
}

// parseDate accepts Excel serial numbers and common text layouts.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return excelize.ExcelDateToTime(f, false)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// commaDecimal matches "1.234,5" and "12,5": '.' groups thousands, ',' marks
// the fraction.
var commaDecimal = regexp.MustCompile(`^-?(\d{1,3}(\.\d{3})+|\d+),(\d+)$`)

// parseQuantity reads a numeric cell. Empty cells count as zero, the way a
// missing value is skipped by a sum. Non-finite values are malformed.
func parseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		m := commaDecimal.FindStringSubmatch(s)
		if m == nil {
			return 0, fmt.Errorf("invalid quantity %q", s)
		}
		// "1,234" reads as a thousands group just as well as a fraction.
		if m[2] == "" && len(m[3]) == 3 {
			return 0, fmt.Errorf("ambiguous quantity %q", s)
		}
		whole := s[:len(s)-len(m[3])-1]
		f, err = strconv.ParseFloat(strings.ReplaceAll(whole, ".", "")+"."+m[3], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid quantity %q", s)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite quantity %q", s)
	}
	return f, nil
}

// normalizeKey makes join keys comparable across sources: "7", " 7" and
// "7.0" are the same key.
func normalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
