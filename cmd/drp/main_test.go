package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataset: P1 sells 10/day at A and 30/day at B through 2024-06-30;
// CD holds 200 units.
func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var sales strings.Builder
	sales.WriteString("product_id,branch_id,date,quantity\n")
	end := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		d := end.AddDate(0, 0, -i).Format("2006-01-02")
		fmt.Fprintf(&sales, "P1,A,%s,10\nP1,B,%s,30\n", d, d)
	}

	files := map[string]string{
		"products.csv": "id,code,description,sale_multiple,active\nP1,OF-1,Oil filter,1,true\n",
		"branches.csv": "id,name,priority\nCD,Central,0\nA,Store A,1\nB,Store B,2\n",
		"stock.csv":    "product_id,branch_id,current_stock,minimum_stock\nP1,CD,200,0\n",
		"sales.csv":    sales.String(),
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"drp"}, args...))
	return out.String(), err
}

func baseArgs(dir string) []string {
	return []string{"--data-dir", dir, "--window", "30", "--lead-time", "5", "--safety-days", "5", "--source", "CD"}
}

func TestAllocateCommand_JSON(t *testing.T) {
	dir := writeDataset(t)

	out, err := run(t, append(append(baseArgs(dir), "--json"), "allocate", "--product", "P1", "--as-of", "2024-06-30")...)
	require.NoError(t, err)

	var result domain.AllocationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, int64(400), result.TotalNeed)
	assert.Equal(t, int64(200), result.TotalShipped)
	require.Len(t, result.Destinations, 2)
	assert.Equal(t, int64(50), result.Destinations[0].SuggestedShipment)
	assert.Equal(t, int64(150), result.Destinations[1].SuggestedShipment)
}

func TestAllocateCommand_Table(t *testing.T) {
	dir := writeDataset(t)

	out, err := run(t, append(baseArgs(dir), "allocate", "--product", "P1", "--as-of", "2024-06-30")...)
	require.NoError(t, err)
	assert.Contains(t, out, "available 200  need 400  shipped 200  deficit 200")
	assert.Contains(t, out, "Rateio")
}

func TestReceiptCommand(t *testing.T) {
	dir := writeDataset(t)

	args := append(baseArgs(dir), "--priority", "B,A", "--json", "receipt", "--product", "P1", "--quantity", "320", "--as-of", "2024-06-30")
	out, err := run(t, args...)
	require.NoError(t, err)

	var result domain.AllocationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.ModePriority, result.Mode)
	assert.Equal(t, int64(20), result.Destinations[0].SuggestedShipment)
	assert.Equal(t, int64(300), result.Destinations[1].SuggestedShipment)
}

func TestProfileCommand(t *testing.T) {
	dir := writeDataset(t)

	out, err := run(t, append(baseArgs(dir), "profile", "--product", "P1", "--branches", "A,B", "--as-of", "2024-06-30")...)
	require.NoError(t, err)
	assert.Contains(t, out, "CONFIDENCE")
	assert.Contains(t, out, "high")
}

func TestMinimumStockCommand(t *testing.T) {
	dir := writeDataset(t)
	reports := t.TempDir()

	out, err := run(t, append(baseArgs(dir), "minimum-stock", "--output-dir", reports, "--workers", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "3/3 processed, 3 succeeded, 0 failed")

	entries, err := os.ReadDir(reports)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCommand_RequiresLedger(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DRP_DATA_DIR", "")
	_, err := run(t, "allocate", "--product", "P1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--data-dir or --db-url")
}
