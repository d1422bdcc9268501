package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dga-engine/internal/dga"
)

const labCSV = `sample_code,transformer,extraction_date,h2,ch4,c2h6,c2h4,c2h2,co,co2,o2,n2
S-001,TR-1,05/01/2023,12,4,3,2,0,210,1600,21000,52000
S-002,TR-1,not-a-date,12,4,3,2,0,210,1600,21000,52000
S-003,TR-2,2023-02-10,320,45,10,40,180,300,2500,18000,50000
`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DGA_DATA_PATH", filepath.Join(dir, "data"))
	t.Setenv("DGA_MODEL_DIR", filepath.Join(dir, "models"))
	t.Setenv("DGA_NORMATIVE_MODE", "local")
	t.Setenv("DGA_LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "lab.csv")
	require.NoError(t, os.WriteFile(path, []byte(labCSV), 0o644))
	return path
}

func TestImportAndList(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir)

	out, err := execute(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Rows: 3  Imported: 2  Skipped: 1")
	assert.Contains(t, out, "row 3")

	out, err = execute(t, "samples")
	require.NoError(t, err)
	assert.Contains(t, out, "S-001")
	assert.Contains(t, out, "S-003")
	assert.Contains(t, out, "2 samples")

	out, err = execute(t, "samples", "--transformer", "TR-2")
	require.NoError(t, err)
	assert.Contains(t, out, "S-003")
	assert.NotContains(t, out, "S-001")

	out, err = execute(t, "samples", "--transformer", "TR-1", "--from", "2023-02-01")
	require.NoError(t, err)
	assert.Contains(t, out, "0 samples")
}

func TestSamplesExport(t *testing.T) {
	dir := setupEnv(t)
	_, err := execute(t, "import", writeCSV(t, dir))
	require.NoError(t, err)

	exportPath := filepath.Join(dir, "backup.csv")
	out, err := execute(t, "samples", "--export", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 samples")

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sample_code")
	assert.Contains(t, string(data), "S-003")
}

func TestSamplesInvalidRange(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "samples", "--transformer", "TR-1", "--from", "2023-05-01", "--to", "2023-01-01")
	assert.Error(t, err)
}

func TestImportMissingFile(t *testing.T) {
	dir := setupEnv(t)
	_, err := execute(t, "import", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, err = execute(t, "import")
	assert.Error(t, err, "file argument is required")
}

func TestDiagnose(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "diagnose", "--h2", "320", "--ch4", "45", "--c2h6", "10", "--c2h4", "40", "--c2h2", "180", "--co", "300", "--co2", "2500")
	require.NoError(t, err)
	assert.Contains(t, out, "IEEE C57.104-2019")
	assert.Contains(t, out, "Duval pentagon 1")
	assert.Contains(t, out, "Consensus:")
	assert.Regexp(t, `Consensus: \S+ \(.+, \d+\.\d% agreement\)`, out)

	_, err = execute(t, "diagnose", "--h2", "-5")
	assert.ErrorIs(t, err, dga.ErrInvalidGasValue)
}

func TestClassifyWithoutModel(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "classify", "--h2", "10", "--co", "200")
	assert.ErrorIs(t, err, dga.ErrModelNotTrained)
}

func TestClassifyCSVParseError(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("sample_code,h2\nX,abc\n"), 0o644))

	_, err := execute(t, "classify", "--csv", path)
	assert.Error(t, err)
}

func TestTrainAndEvaluateWithoutData(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "train")
	assert.ErrorIs(t, err, dga.ErrInsufficientData)

	_, err = execute(t, "evaluate")
	assert.ErrorIs(t, err, dga.ErrInsufficientData)

	out, err := execute(t, "prepare")
	assert.ErrorIs(t, err, dga.ErrInsufficientData)
	assert.Contains(t, out, "Examples: 0")
}

func TestCompareWithoutModel(t *testing.T) {
	dir := setupEnv(t)
	_, err := execute(t, "import", writeCSV(t, dir))
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "concordance.csv")
	_, err = execute(t, "compare", "--csv", csvPath)
	assert.ErrorIs(t, err, dga.ErrModelNotTrained)
	_, statErr := os.Stat(csvPath)
	assert.True(t, os.IsNotExist(statErr), "no CSV is written without a model")
}

func TestEvaluateUnknownCandidate(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "evaluate", "--importance", "xgboost")
	assert.ErrorContains(t, err, "unknown candidate")
}

func TestConfigFlag(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("DGA_DATA_PATH", "")
	dataPath := filepath.Join(dir, "from-yaml")
	config := "storage:\n  dataPath: " + dataPath + "\n  modelDir: " + filepath.Join(dir, "m") + "\nlogging:\n  level: warn\n"
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	_, err := execute(t, "--config", configPath, "samples")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dataPath, "dga-samples.db"))
	assert.NoError(t, err)
}

func TestLoggingFlags(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "--log-format", "xml", "samples")
	assert.ErrorContains(t, err, "unknown log format")

	_, err = execute(t, "--log-level", "loud", "samples")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = execute(t, "--log-format", "json", "--log-level", "debug", "samples")
	assert.NoError(t, err)
}
