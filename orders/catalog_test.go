package orders

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "fleetwise/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadCatalogCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "materials.csv"),
		[]byte(" Description , UOM \nFull Cream Milk 500ml,Packet\n,Skipped\nPaneer 200g,\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "customers.csv"),
		[]byte("CD_Name,AD_Billing_Address_City\nAavin Depot 1,Chennai\n"), 0o644))

	catalog, err := LoadCatalog(dir)
	require.NoError(t, err)
	assert.Equal(t, []Material{
		{Description: "Full Cream Milk 500ml", UOM: "Packet"},
		{Description: "Paneer 200g", UOM: ""},
	}, catalog.Materials)
	assert.Equal(t, []Customer{{Name: "Aavin Depot 1", SalesArea: "Chennai"}}, catalog.Customers)
}

func TestLoadCatalogWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "materials.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"description", "UOM"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Toned Milk 1L", "Packet"}))
	_, err := f.NewSheet("Customers")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Customers", "A1", &[]interface{}{"cd_name", "ad_billing_address_city"}))
	require.NoError(t, f.SetSheetRow("Customers", "A2", &[]interface{}{"Retail Shop 23", "Madurai"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []Material{{Description: "Toned Milk 1L", UOM: "Packet"}}, catalog.Materials)
	assert.Equal(t, []Customer{{Name: "Retail Shop 23", SalesArea: "Madurai"}}, catalog.Customers)
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.True(t, apperrors.IsNotFound(err))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "materials.csv"), []byte("name,unit\nx,y\n"), 0o644))
	_, err = LoadCatalog(dir)
	assert.True(t, apperrors.IsInvalidInput(err))
}
