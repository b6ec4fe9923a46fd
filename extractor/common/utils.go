package common

import (
	"bytes"
	"compress/bzip2"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/extrame/xls"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files no reader understands.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// pdfCellGap is the horizontal distance, in points, that separates two cells on a PDF row.
const pdfCellGap = 6.0

// ErrContentMismatch is returned when a binary file's content does not match its extension.
var ErrContentMismatch = errors.New("content does not match extension")

// containers maps binary extensions to the detected type their content must descend from.
var containers = map[string]string{
	".pdf":  "application/pdf",
	".xlsx": "application/zip",
	".xls":  "application/x-ole-storage",
}

var supported = map[string]bool{
	".pdf":  true,
	".csv":  true,
	".xlsx": true,
	".xls":  true,
	".json": true,
}

// IsSupported reports whether path has an extension ReadSource can handle.
func IsSupported(path string) bool {
	ext, _ := splitExt(path)
	return supported[ext]
}

// splitExt returns the content extension and the compression extension, if any.
func splitExt(path string) (string, string) {
	lower := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(lower)
	switch ext {
	case ".gz", ".bz2", ".xz", ".zst", ".lz4":
		return filepath.Ext(strings.TrimSuffix(lower, ext)), ext
	}
	return ext, ""
}

// ReadSource reads the pages and tables of a statement file.
func ReadSource(path string) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ReadSourceReader(file, path)
}

// ReadSourceReader dispatches on the extension of name. Compressed inputs are
// decompressed first.
func ReadSourceReader(reader io.Reader, name string) (Source, error) {
	ext, compression := splitExt(name)
	if !supported[ext] {
		return Source{}, fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupportedFormat)
	}

	decompressed, closer, err := decompress(reader, compression)
	if err != nil {
		return Source{}, err
	}
	if closer != nil {
		defer closer()
	}

	data, err := io.ReadAll(decompressed)
	if err != nil {
		return Source{}, fmt.Errorf("failed to read %s: %w", filepath.Base(name), err)
	}

	if err := checkContent(data, ext); err != nil {
		return Source{}, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}

	source := Source{Name: SourceName(name)}
	switch ext {
	case ".pdf":
		source.Pages, source.Tables, err = readPDF(data)
	case ".csv":
		source.Tables, err = readCSV(data)
	case ".xlsx":
		source.Tables, err = readXLSX(data)
	case ".xls":
		source.Tables, err = readXLS(data)
	case ".json":
		err = readJSON(data, &source)
		source.Name = SourceName(name)
	}
	if err != nil {
		return Source{}, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return source, nil
}

// checkContent sniffs binary formats so a renamed file fails before its reader runs.
func checkContent(data []byte, ext string) error {
	want, ok := containers[ext]
	if !ok {
		return nil
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(want) {
			return nil
		}
	}
	return fmt.Errorf("%w: detected %s", ErrContentMismatch, detected.String())
}

// SourceName strips directories and every extension, compression included.
func SourceName(name string) string {
	base := filepath.Base(name)
	if _, compression := splitExt(base); compression != "" {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func decompress(reader io.Reader, compression string) (io.Reader, func(), error) {
	switch compression {
	case ".gz":
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case ".bz2":
		return bzip2.NewReader(reader), nil, nil
	case ".xz":
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, nil, nil
	case ".zst":
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, decoder.Close, nil
	case ".lz4":
		return lz4.NewReader(reader), nil, nil
	default:
		return reader, nil, nil
	}
}

// readPDF turns every text row of every page into a table row. Text runs closer
// than pdfCellGap are joined into one cell.
func readPDF(data []byte) ([]Page, []Table, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}

	numPages := r.NumPage()
	pages := make([]Page, 0, numPages)
	tables := make([]Table, 0, numPages)

	for no := 1; no <= numPages; no++ {
		page := r.Page(no)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			log.Warn().Err(err).Int("page", no).Msg("error getting text from page")
			continue
		}

		var text strings.Builder
		table := Table{Page: no, Index: len(tables)}
		for _, row := range rows {
			var cells []*string
			var cell strings.Builder
			lastEnd := -1.0
			flush := func() {
				if v := strings.TrimSpace(cell.String()); v != "" {
					cells = append(cells, &v)
				}
				cell.Reset()
			}
			for _, t := range row.Content {
				if lastEnd >= 0 && t.X-lastEnd > pdfCellGap {
					flush()
				}
				cell.WriteString(t.S)
				lastEnd = t.X + t.W
			}
			flush()
			if len(cells) == 0 {
				continue
			}

			table.Rows = append(table.Rows, cells)
			for i, c := range cells {
				if i > 0 {
					text.WriteByte(' ')
				}
				text.WriteString(*c)
			}
			text.WriteByte('\n')
		}

		pages = append(pages, Page{Number: no, Text: text.String()})
		if len(table.Rows) > 0 {
			tables = append(tables, table)
		}
	}

	return pages, tables, nil
}

func readCSV(data []byte) ([]Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return []Table{NewTable(1, 0, records)}, nil
}

func readXLSX(data []byte) ([]Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	var tables []Table
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		tables = append(tables, NewTable(i+1, len(tables), rows))
	}
	return tables, nil
}

func readXLS(data []byte) ([]Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}

	var tables []Table
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		tables = append(tables, NewTable(i+1, len(tables), rows))
	}
	return tables, nil
}

// readJSON accepts either a full Source dump or a bare list of tables.
func readJSON(data []byte, source *Source) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &source.Tables)
	}
	return json.Unmarshal(trimmed, source)
}

// ReadHints loads the optional "<name>.hints.json" sidecar next to a statement file.
func ReadHints(path string) (Hints, error) {
	var hints Hints
	sidecar := HintsPath(path)
	data, err := os.ReadFile(sidecar)
	if errors.Is(err, os.ErrNotExist) {
		return hints, nil
	}
	if err != nil {
		return hints, fmt.Errorf("failed to read hints: %w", err)
	}
	if err := json.Unmarshal(data, &hints); err != nil {
		return hints, fmt.Errorf("failed to parse hints %s: %w", filepath.Base(sidecar), err)
	}
	return hints, nil
}

// HintsPath is the sidecar location for a statement file.
func HintsPath(path string) string {
	return filepath.Join(filepath.Dir(path), SourceName(path)+".hints.json")
}

// IsHintsFile reports whether path is a hints sidecar rather than a statement.
func IsHintsFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".hints.json")
}
