package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
)

// SampleRow is one line of a laboratory export.
type SampleRow struct {
	SampleCode     string `csv:"sample_code"`
	Transformer    string `csv:"transformer"`
	ExtractionDate string `csv:"extraction_date"`
	H2             string `csv:"h2"`
	CH4            string `csv:"ch4"`
	C2H6           string `csv:"c2h6"`
	C2H4           string `csv:"c2h4"`
	C2H2           string `csv:"c2h2"`
	CO             string `csv:"co"`
	CO2            string `csv:"co2"`
	O2             string `csv:"o2"`
	N2             string `csv:"n2"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	TotalRows int      `json:"total_rows"`
	Imported  int      `json:"imported"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// ErrMissingColumns reports a CSV header without every required column.
var ErrMissingColumns = errors.New("missing required columns")

// headerAliases maps laboratory spellings onto the canonical column names.
var headerAliases = map[string]string{
	"codigo_muestra":   "sample_code",
	"codigo":           "sample_code",
	"fecha_extraccion": "extraction_date",
	"fecha":            "extraction_date",
	"transformador":    "transformer",
	"hidrogeno":        "h2",
	"metano":           "ch4",
	"etano":            "c2h6",
	"etileno":          "c2h4",
	"acetileno":        "c2h2",
}

var requiredColumns = []string{"sample_code", "extraction_date", "h2", "ch4", "c2h6", "c2h4", "c2h2", "co", "co2", "o2", "n2"}

// NormalizeHeader trims, lower-cases and underscores a column name, then
// resolves known aliases.
func NormalizeHeader(name string) string {
	key := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "_")
	if canonical, ok := headerAliases[key]; ok {
		return canonical
	}
	return key
}

// headerReader serves a rewritten header row before the remaining records.
type headerReader struct {
	header []string
	r      *csv.Reader
}

func (h *headerReader) Read() ([]string, error) {
	if h.header != nil {
		rec := h.header
		h.header = nil
		return rec, nil
	}
	return h.r.Read()
}

func (h *headerReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := h.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// readHeader consumes and canonicalises the header row. Every missing
// required column is reported in one error.
func readHeader(r *csv.Reader) ([]string, error) {
	raw, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(requiredColumns, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, name := range raw {
		header[i] = NormalizeHeader(name)
		seen[header[i]] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return header, nil
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006", "2006/01/02"}

// ParseDate accepts DD/MM/YYYY, YYYY-MM-DD, DD-MM-YYYY and YYYY/MM/DD.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

func parseGas(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q", name, raw)
	}
	return v, nil
}

// ToSample converts the row. defaultTransformer is used when the row has no
// transformer column.
func (r SampleRow) ToSample(defaultTransformer string) (dga.Sample, error) {
	date, err := ParseDate(r.ExtractionDate)
	if err != nil {
		return dga.Sample{}, err
	}
	raw := []string{r.H2, r.CH4, r.C2H6, r.C2H4, r.C2H2, r.CO, r.CO2, r.O2, r.N2}
	values := make([]float64, dga.NumGases)
	for i, s := range raw {
		if values[i], err = parseGas(dga.GasNames[i], s); err != nil {
			return dga.Sample{}, err
		}
	}
	reading, _ := dga.ReadingFromFeatures(values)

	transformer := strings.TrimSpace(r.Transformer)
	if transformer == "" {
		transformer = defaultTransformer
	}
	return dga.Sample{
		Code:           strings.TrimSpace(r.SampleCode),
		TransformerID:  transformer,
		ExtractionDate: date,
		Reading:        reading,
	}, nil
}

// Import reads CSV rows and stores every valid one. Header names are
// normalised and aliased first; a header missing required columns fails the
// whole import. Invalid rows are skipped and reported; they never abort it.
func (s *Store) Import(ctx context.Context, in io.Reader, defaultTransformer string) (ImportResult, error) {
	r := csv.NewReader(stripBOM(in))
	header, err := readHeader(r)
	if err != nil {
		return ImportResult{}, err
	}
	var rows []*SampleRow
	if err := gocsv.UnmarshalCSV(&headerReader{header: header, r: r}, &rows); err != nil {
		return ImportResult{}, fmt.Errorf("parse csv: %w", err)
	}

	res := ImportResult{TotalRows: len(rows)}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := i + 2 // header is line 1
		sample, err := row.ToSample(defaultTransformer)
		if err == nil {
			err = s.StoreSample(sample)
		}
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		res.Imported++
	}

	log.Info().
		Int("rows", res.TotalRows).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Msg("Sample import finished")
	return res, nil
}

// ImportFile opens path and calls Import.
func (s *Store) ImportFile(ctx context.Context, path, defaultTransformer string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, err
	}
	defer f.Close()
	return s.Import(ctx, f, defaultTransformer)
}

// Export writes every stored sample as CSV in the import format.
func (s *Store) Export(ctx context.Context, out io.Writer) (int, error) {
	samples, err := s.ListSamples(ctx)
	if err != nil {
		return 0, err
	}
	rows := make([]*SampleRow, 0, len(samples))
	for _, sample := range samples {
		rows = append(rows, rowFromSample(sample))
	}
	if err := gocsv.Marshal(&rows, out); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(rows), nil
}

func rowFromSample(s dga.Sample) *SampleRow {
	f := s.Reading.Features()
	str := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return &SampleRow{
		SampleCode:     s.Code,
		Transformer:    s.TransformerID,
		ExtractionDate: s.ExtractionDate.Format("2006-01-02"),
		H2:             str(f[0]),
		CH4:            str(f[1]),
		C2H6:           str(f[2]),
		C2H4:           str(f[3]),
		C2H2:           str(f[4]),
		CO:             str(f[5]),
		CO2:            str(f[6]),
		O2:             str(f[7]),
		N2:             str(f[8]),
	}
}

func stripBOM(in io.Reader) io.Reader {
	br := bufio.NewReader(in)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}
