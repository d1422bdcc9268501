package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
)

const importCSV = `sample_code,extraction_date,h2,ch4,c2h6,c2h4,c2h2,co,co2,o2,n2
M-100,15/03/2022,35,12,8,5,0,300,2400,15000,52000
M-101,2022-04-20,120,60,20,80,2,410,3100,14000,51000
M-102,not-a-date,1,1,1,1,1,1,1,1,1
M-103,2022-05-01,-4,1,1,1,1,1,1,1,1
M-104,2022-06-01,abc,1,1,1,1,1,1,1,1
M-100,2022-07-01,1,1,1,1,1,1,1,1,1
`

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"15/03/2022", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2022-03-15", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15-03-2022", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{" 2022/03/15 ", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.True(t, tt.want.Equal(got), "%s parsed as %s", tt.raw, got)
	}

	_, err := ParseDate("March 15")
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	res, err := store.Import(context.Background(), strings.NewReader(importCSV), "TR-07")
	require.NoError(t, err)

	assert.Equal(t, 6, res.TotalRows)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 4, res.Skipped)
	require.Len(t, res.Errors, 4)
	assert.Contains(t, res.Errors[0], "row 4")
	assert.Contains(t, res.Errors[3], "already exists")

	s, found, err := store.GetSample("M-101")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "TR-07", s.TransformerID)
	assert.Equal(t, dga.GasReading{H2: 120, CH4: 60, C2H6: 20, C2H4: 80, C2H2: 2, CO: 410, CO2: 3100, O2: 14000, N2: 51000}, s.Reading)
}

func TestImport_TransformerColumnAndBOM(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	data := "\xEF\xBB\xBFsample_code,transformer,extraction_date,h2,ch4,c2h6,c2h4,c2h2,co,co2,o2,n2\n" +
		"X-1,TR-99,2021-01-01,1,2,3,4,5,6,7,8,9\n"
	res, err := store.Import(context.Background(), strings.NewReader(data), "TR-default")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	s, found, err := store.GetSample("X-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "TR-99", s.TransformerID)
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"sample_code", "sample_code"},
		{" Sample Code ", "sample_code"},
		{"Codigo_Muestra", "sample_code"},
		{"codigo", "sample_code"},
		{"Fecha Extraccion", "extraction_date"},
		{"FECHA", "extraction_date"},
		{"Hidrogeno", "h2"},
		{"metano", "ch4"},
		{"Etano", "c2h6"},
		{"etileno", "c2h4"},
		{"ACETILENO", "c2h2"},
		{"CO2", "co2"},
		{"notes", "notes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeHeader(tt.raw), tt.raw)
	}
}

func TestImport_HeaderAliases(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	data := "Codigo Muestra, Fecha ,Hidrogeno,Metano,Etano,Etileno,Acetileno,CO,CO2,O2,N2,Notes\n" +
		"A-1,2021-05-01,10,20,30,40,5,60,70,80,90,resampled\n"
	res, err := store.Import(context.Background(), strings.NewReader(data), "TR-3")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	s, found, err := store.GetSample("A-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, dga.GasReading{H2: 10, CH4: 20, C2H6: 30, C2H4: 40, C2H2: 5, CO: 60, CO2: 70, O2: 80, N2: 90}, s.Reading)
	assert.Equal(t, "TR-3", s.TransformerID)
}

func TestImport_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		missing []string
	}{
		{
			name:    "gases absent",
			data:    "sample_code,extraction_date,h2,ch4\nA,2021-01-01,1,2\n",
			missing: []string{"c2h6", "c2h4", "c2h2", "co", "co2", "o2", "n2"},
		},
		{
			name:    "no identity columns",
			data:    "h2,ch4,c2h6,c2h4,c2h2,co,co2,o2,n2\n1,1,1,1,1,1,1,1,1\n",
			missing: []string{"sample_code", "extraction_date"},
		},
		{
			name:    "empty input",
			data:    "",
			missing: []string{"sample_code", "n2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			res, err := store.Import(context.Background(), strings.NewReader(tt.data), "TR-1")
			require.ErrorIs(t, err, ErrMissingColumns)
			for _, col := range tt.missing {
				assert.Contains(t, err.Error(), col)
			}
			assert.Zero(t, res.Imported)

			n, err := store.Count()
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	src, err := New(t.TempDir())
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Import(context.Background(), strings.NewReader(importCSV), "TR-07")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := src.Export(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	dst, err := New(t.TempDir())
	require.NoError(t, err)
	defer dst.Close()

	res, err := dst.ImportFile(context.Background(), path, "ignored")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	want, err := src.ListSamples(context.Background())
	require.NoError(t, err)
	got, err := dst.ListSamples(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestImportFile_Missing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), "TR-1")
	assert.Error(t, err)
}
