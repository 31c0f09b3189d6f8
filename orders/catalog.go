package orders

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "fleetwise/errors"

	"github.com/xuri/excelize/v2"
)

// Reference sheet column names, matched after trimming and lowercasing.
const (
	colDescription = "description"
	colUOM         = "uom"
	colCustomer    = "cd_name"
	colCity        = "ad_billing_address_city"
)

// LoadCatalog reads the reference sheet. path is either an xlsx workbook
// (first sheet materials, second sheet customers) or a directory holding
// materials.csv and customers.csv.
func LoadCatalog(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.Kind(apperrors.ErrNotFound, fmt.Errorf("reference sheet %s: %w", path, err))
	}
	if info.IsDir() {
		return loadCSVDir(path)
	}
	return loadWorkbook(path)
}

func loadWorkbook(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, fmt.Errorf("open workbook: %w", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, fmt.Errorf("workbook %s has no sheets", path))
	}

	catalog := &Catalog{}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read materials sheet: %w", err)
	}
	if catalog.Materials, err = materialsFromRows(rows); err != nil {
		return nil, err
	}

	if len(sheets) > 1 {
		rows, err := f.GetRows(sheets[1])
		if err != nil {
			return nil, fmt.Errorf("read customers sheet: %w", err)
		}
		if catalog.Customers, err = customersFromRows(rows); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func loadCSVDir(dir string) (*Catalog, error) {
	catalog := &Catalog{}

	rows, err := readCSV(filepath.Join(dir, "materials.csv"))
	if err != nil {
		return nil, err
	}
	if catalog.Materials, err = materialsFromRows(rows); err != nil {
		return nil, err
	}

	customersPath := filepath.Join(dir, "customers.csv")
	if _, err := os.Stat(customersPath); err == nil {
		rows, err := readCSV(customersPath)
		if err != nil {
			return nil, err
		}
		if catalog.Customers, err = customersFromRows(rows); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Kind(apperrors.ErrNotFound, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Kind(apperrors.ErrInvalidInput, fmt.Errorf("read %s: %w", path, err))
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// columnIndex maps normalized header names to positions.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func requireColumns(idx map[string]int, names ...string) error {
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			return apperrors.Kind(apperrors.ErrInvalidInput, fmt.Errorf("reference sheet is missing column %q", n))
		}
	}
	return nil
}

func materialsFromRows(rows [][]string) ([]Material, error) {
	if len(rows) == 0 {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, fmt.Errorf("materials sheet is empty"))
	}
	idx := columnIndex(rows[0])
	if err := requireColumns(idx, colDescription, colUOM); err != nil {
		return nil, err
	}
	var out []Material
	for _, row := range rows[1:] {
		desc := cell(row, idx[colDescription])
		if desc == "" {
			continue
		}
		out = append(out, Material{Description: desc, UOM: cell(row, idx[colUOM])})
	}
	return out, nil
}

func customersFromRows(rows [][]string) ([]Customer, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idx := columnIndex(rows[0])
	if err := requireColumns(idx, colCustomer, colCity); err != nil {
		return nil, err
	}
	var out []Customer
	for _, row := range rows[1:] {
		name := cell(row, idx[colCustomer])
		if name == "" {
			continue
		}
		out = append(out, Customer{Name: name, SalesArea: cell(row, idx[colCity])})
	}
	return out, nil
}
