package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// File names of the CSV export.
const (
	MedicinesFile   = "medicines_master.csv"
	ConsumptionFile = "consumption_log.csv"
	InventoryFile   = "current_inventory.csv"
)

const csvDateLayout = "2006-01-02"

// CSVLoader reads the three tables from a directory of CSV exports. Columns
// are looked up by header name, so extra columns and any column order are
// accepted.
type CSVLoader struct {
	dir string
}

// NewCSVLoader creates a loader for the given data directory
func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{dir: dir}
}

// Source implements Loader.
func (l *CSVLoader) Source() string { return config.SourceCSV }

// Load implements Loader. Any malformed row fails the whole load.
func (l *CSVLoader) Load(ctx context.Context) (domain.Tables, error) {
	var tables domain.Tables

	err := l.readFile(ctx, MedicinesFile, func(r row) error {
		item, err := parseItem(r)
		if err == nil {
			tables.Items = append(tables.Items, item)
		}
		return err
	})
	if err != nil {
		return domain.Tables{}, err
	}

	err = l.readFile(ctx, ConsumptionFile, func(r row) error {
		rec, err := parseConsumption(r)
		if err == nil {
			tables.Consumption = append(tables.Consumption, rec)
		}
		return err
	})
	if err != nil {
		return domain.Tables{}, err
	}

	err = l.readFile(ctx, InventoryFile, func(r row) error {
		b, err := parseBatch(r)
		if err == nil {
			tables.Batches = append(tables.Batches, b)
		}
		return err
	})
	if err != nil {
		return domain.Tables{}, err
	}

	return tables, nil
}

func (l *CSVLoader) readFile(ctx context.Context, name string, fn func(row) error) error {
	path := filepath.Join(l.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", name, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		if err := fn(row{cols: cols, record: record}); err != nil {
			return fmt.Errorf("%s line %d: %w", name, line, err)
		}
	}
}

// row gives header-keyed access to one CSV record.
type row struct {
	cols   map[string]int
	record []string
}

// str returns the first present column among names.
func (r row) str(names ...string) (string, bool) {
	for _, n := range names {
		if idx, ok := r.cols[n]; ok && idx < len(r.record) {
			return strings.TrimSpace(r.record[idx]), true
		}
	}
	return "", false
}

func (r row) required(names ...string) (string, error) {
	v, ok := r.str(names...)
	if !ok || v == "" {
		return "", fmt.Errorf("missing %s", names[0])
	}
	return v, nil
}

func (r row) int64Col(names ...string) (int64, error) {
	v, err := r.required(names...)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", names[0], v)
	}
	return n, nil
}

// int accepts integral values written as floats ("12.0"), which pandas
// produces for columns that once held NaN.
func (r row) intCol(names ...string) (int, error) {
	v, err := r.required(names...)
	if err != nil {
		return 0, err
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%s: invalid integer %q", names[0], v)
	}
	return int(f), nil
}

func (r row) optionalInt(names ...string) (int, error) {
	if v, ok := r.str(names...); !ok || v == "" {
		return 0, nil
	}
	return r.intCol(names...)
}

func (r row) decimalCol(names ...string) (decimal.Decimal, error) {
	v, err := r.required(names...)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid amount %q", names[0], v)
	}
	return d, nil
}

func (r row) dateCol(names ...string) (time.Time, error) {
	v, err := r.required(names...)
	if err != nil {
		return time.Time{}, err
	}
	// pandas may write a time part after the date
	if len(v) > len(csvDateLayout) {
		v = v[:len(csvDateLayout)]
	}
	t, err := time.Parse(csvDateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q", names[0], v)
	}
	return t, nil
}

func parseItem(r row) (domain.Item, error) {
	var (
		it  domain.Item
		err error
	)
	if it.ID, err = r.int64Col("medicine_id"); err != nil {
		return it, err
	}
	if it.Name, err = r.required("name"); err != nil {
		return it, err
	}
	it.Category, _ = r.str("category")
	it.Unit, _ = r.str("unit")
	if it.ReorderLevel, err = r.optionalInt("reorder_level"); err != nil {
		return it, err
	}
	if it.ShelfLifeDays, err = r.optionalInt("shelf_life_days"); err != nil {
		return it, err
	}
	if it.UnitCost, err = r.decimalCol("unit_cost_inr", "unit_cost"); err != nil {
		return it, err
	}
	return it, nil
}

func parseConsumption(r row) (domain.ConsumptionRecord, error) {
	var (
		rec domain.ConsumptionRecord
		err error
	)
	if rec.ItemID, err = r.int64Col("medicine_id"); err != nil {
		return rec, err
	}
	if rec.Date, err = r.dateCol("date"); err != nil {
		return rec, err
	}
	if rec.QuantityDispensed, err = r.intCol("quantity_dispensed"); err != nil {
		return rec, err
	}
	if rec.PatientCount, err = r.optionalInt("patient_count"); err != nil {
		return rec, err
	}
	return rec, nil
}

func parseBatch(r row) (domain.Batch, error) {
	var (
		b   domain.Batch
		err error
	)
	if b.ItemID, err = r.int64Col("medicine_id"); err != nil {
		return b, err
	}
	b.ItemName, _ = r.str("medicine_name")
	b.Category, _ = r.str("category")
	if b.BatchNo, err = r.required("batch_no"); err != nil {
		return b, err
	}
	if b.Quantity, err = r.intCol("quantity"); err != nil {
		return b, err
	}
	b.Unit, _ = r.str("unit")
	if b.ExpiryDate, err = r.dateCol("expiry_date"); err != nil {
		return b, err
	}
	if v, _ := r.str("received_date"); v != "" {
		if b.ReceivedDate, err = r.dateCol("received_date"); err != nil {
			return b, err
		}
	}
	if b.UnitCost, err = r.decimalCol("unit_cost_inr", "unit_cost"); err != nil {
		return b, err
	}
	if v, _ := r.str("total_value_inr", "total_value"); v != "" {
		if b.TotalValue, err = r.decimalCol("total_value_inr", "total_value"); err != nil {
			return b, err
		}
	} else {
		b.TotalValue = b.UnitCost.Mul(decimal.NewFromInt(int64(b.Quantity)))
	}
	return b, nil
}
