package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository/memory"
)

// File names read from a dataset directory. Branches and groups are optional.
const (
	ProductsFile = "products.csv"
	BranchesFile = "branches.csv"
	SalesFile    = "sales.csv"
	StockFile    = "stock.csv"
	GroupsFile   = "groups.csv"
)

const dateLayout = "2006-01-02"

// Loader fills a memory.Store from a directory of CSV exports
type Loader struct {
	dir string
}

// NewLoader creates a loader reading from dir
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load reads every dataset file into a new store
func (l *Loader) Load() (*memory.Store, error) {
	store := memory.NewStore()

	steps := []struct {
		file     string
		optional bool
		load     func(*memory.Store, *table) error
	}{
		{ProductsFile, false, loadProducts},
		{BranchesFile, true, loadBranches},
		{SalesFile, false, loadSales},
		{StockFile, false, loadStock},
		{GroupsFile, true, loadGroups},
	}

	for _, step := range steps {
		path := filepath.Join(l.dir, step.file)
		t, err := openTable(path)
		if errors.Is(err, os.ErrNotExist) && step.optional {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := step.load(store, t); err != nil {
			return nil, fmt.Errorf("%s: %w", step.file, err)
		}
	}

	return store, nil
}

// table is a parsed CSV with header lookup
type table struct {
	header map[string]int
	rows   [][]string
}

func openTable(path string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", path, err)
	}

	t := &table{header: make(map[string]int, len(header))}
	for i, h := range header {
		t.header[normalizeColumnName(h)] = i
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

func (t *table) require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if _, ok := t.header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns %v", missing)
	}
	return nil
}

func (t *table) get(record []string, column string) string {
	idx, ok := t.header[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func loadProducts(s *memory.Store, t *table) error {
	if err := t.require("id"); err != nil {
		return err
	}
	for i, r := range t.rows {
		multiple, err := parseInt(t.get(r, "sale_multiple"), 1)
		if err != nil {
			return fmt.Errorf("row %d: sale_multiple: %w", i+2, err)
		}
		active := true
		if v := t.get(r, "active"); v != "" {
			active, err = strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("row %d: active: %w", i+2, err)
			}
		}
		s.AddProduct(domain.Product{
			ID:           t.get(r, "id"),
			Code:         t.get(r, "code"),
			Description:  t.get(r, "description"),
			SaleMultiple: multiple,
			Active:       active,
		})
	}
	return nil
}

func loadBranches(s *memory.Store, t *table) error {
	if err := t.require("id"); err != nil {
		return err
	}
	for i, r := range t.rows {
		priority, err := parseInt(t.get(r, "priority"), int64(i))
		if err != nil {
			return fmt.Errorf("row %d: priority: %w", i+2, err)
		}
		s.AddBranch(domain.Branch{ID: t.get(r, "id"), Name: t.get(r, "name"), Priority: int(priority)})
	}
	return nil
}

func loadSales(s *memory.Store, t *table) error {
	if err := t.require("product_id", "branch_id", "date", "quantity"); err != nil {
		return err
	}
	for i, r := range t.rows {
		date, err := time.Parse(dateLayout, t.get(r, "date"))
		if err != nil {
			return fmt.Errorf("row %d: date: %w", i+2, err)
		}
		qty, err := strconv.ParseFloat(t.get(r, "quantity"), 64)
		if err != nil {
			return fmt.Errorf("row %d: quantity: %w", i+2, err)
		}
		s.AddSales(t.get(r, "product_id"), domain.SalesObservation{
			BranchID: t.get(r, "branch_id"),
			Date:     date,
			Quantity: qty,
		})
	}
	return nil
}

func loadStock(s *memory.Store, t *table) error {
	if err := t.require("product_id", "branch_id", "current_stock"); err != nil {
		return err
	}
	for i, r := range t.rows {
		current, err := parseInt(t.get(r, "current_stock"), 0)
		if err != nil {
			return fmt.Errorf("row %d: current_stock: %w", i+2, err)
		}
		minimum, err := parseInt(t.get(r, "minimum_stock"), 0)
		if err != nil {
			return fmt.Errorf("row %d: minimum_stock: %w", i+2, err)
		}
		s.SetStock(domain.BranchStockState{
			ProductID:    t.get(r, "product_id"),
			BranchID:     t.get(r, "branch_id"),
			CurrentStock: current,
			MinimumStock: minimum,
		})
	}
	return nil
}

func loadGroups(s *memory.Store, t *table) error {
	if err := t.require("group_id", "product_id"); err != nil {
		return err
	}
	var order []string
	groups := make(map[string][]string)
	for _, r := range t.rows {
		id := t.get(r, "group_id")
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], t.get(r, "product_id"))
	}
	for _, id := range order {
		s.SetSubstituteGroup(groups[id]...)
	}
	return nil
}

func parseInt(v string, fallback int64) (int64, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64)
}

func normalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ReplaceAll(name, " ", "_")
}
