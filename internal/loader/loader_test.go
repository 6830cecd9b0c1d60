package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Order ID,Customer Name,Category,Sub Category,City,Order Date,Region,Sales,Discount,Profit,State\n"

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidData(t *testing.T) {
	path := createTempCSV(t, header+
		"OD1,Harish,Oil & Masala,Masalas,Vellore,11-08-2017,North,1254,0.12,401.28,Tamil Nadu\n"+
		"OD2,Sudha,Beverages,Health Drinks,Krishnagiri,11/08/2017,South,749,0.18,149.8,Tamil Nadu\n")

	res, err := Load(context.Background(), Options{Path: path, DayFirst: false})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 0, res.Dropped)

	tx := res.Transactions[0]
	assert.Equal(t, "OD1", tx.OrderID)
	assert.Equal(t, "Harish", tx.CustomerName)
	assert.Equal(t, "Masalas", tx.SubCategory)
	assert.Equal(t, time.Date(2017, time.November, 8, 0, 0, 0, 0, time.UTC), tx.OrderDate)
	assert.InDelta(t, 1254.0, tx.Sales, 1e-9)
	assert.InDelta(t, 0.12, tx.Discount, 1e-9)
	assert.InDelta(t, 401.28, tx.Profit, 1e-9)
}

func TestLoad_DayFirst(t *testing.T) {
	path := createTempCSV(t, header+
		"OD1,Harish,Oil & Masala,Masalas,Vellore,11-08-2017,North,1254,0.12,401.28,Tamil Nadu\n")

	res, err := Load(context.Background(), Options{Path: path, DayFirst: true})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2017, time.August, 11, 0, 0, 0, 0, time.UTC), res.Transactions[0].OrderDate)
}

func TestLoad_ExplicitFormat(t *testing.T) {
	path := createTempCSV(t, header+
		"OD1,Harish,Oil & Masala,Masalas,Vellore,2017.08.11,North,1254,0.12,401.28,Tamil Nadu\n")

	res, err := Load(context.Background(), Options{Path: path, DateFormat: "2006.01.02"})
	require.NoError(t, err)
	assert.Equal(t, time.August, res.Transactions[0].OrderDate.Month())
}

func TestLoad_DropsInvalidRows(t *testing.T) {
	path := createTempCSV(t, header+
		"OD1,Harish,Oil & Masala,Masalas,Vellore,31/02/2023,North,1254,0.12,401.28,Tamil Nadu\n"+
		"OD2,Sudha,Beverages,Health Drinks,Krishnagiri,not-a-date,South,749,0.18,149.8,Tamil Nadu\n"+
		"OD3,Hussain,Food Grains,Atta & Flour,Perambalur,,West,2360,0.21,165.2,Tamil Nadu\n"+
		"OD4,Jackson,Fruits & Veggies,Fresh Vegetables,Dharmapuri,15/06/2016,South,abc,0.25,89.6,Tamil Nadu\n"+
		"OD5,Ridhesh,Food Grains,Organic Staples,Ooty,15/06/2016,South,2355,0.26,918.45,Tamil Nadu\n")

	res, err := Load(context.Background(), Options{Path: path, DayFirst: true})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "OD5", res.Transactions[0].OrderID)
	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, 4, res.Dropped)
}

func TestLoad_DataSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.csv")},
		{name: "empty file", content: ""},
		{name: "no date column", content: "Order ID,Customer Name,Sales\nOD1,Harish,10\n"},
		{name: "missing measure column", content: "Order ID,Customer Name,Category,Sub Category,City,Order Date,Region,Sales,Discount\nOD1,H,C,S,X,01-01-2017,North,1,0\n"},
		{name: "header only", content: header},
		{name: "no valid rows", content: header + "OD1,Harish,Oil,Masalas,Vellore,31/02/2023,North,1,0,1,TN\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = createTempCSV(t, tt.content)
			}

			_, err := Load(context.Background(), Options{Path: path, DayFirst: true})
			require.Error(t, err)

			var dsErr *DataSourceError
			assert.True(t, errors.As(err, &dsErr), "expected DataSourceError, got %T", err)
		})
	}
}

func TestRead_HeaderVariants(t *testing.T) {
	content := "order_id,ORDER-DATE,customer name,Region,city,category,SubCategory,sales,profit,discount\n" +
		"OD1,2017-11-08,Harish,North,Vellore,Oil & Masala,Masalas,\"1,254\",401.28,0.12\n"

	res, err := Read(context.Background(), strings.NewReader(content), Options{Path: "inline"})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.InDelta(t, 1254.0, res.Transactions[0].Sales, 1e-9)
	assert.Equal(t, "Masalas", res.Transactions[0].SubCategory)
}

func TestRead_PreservesOrderAcrossBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	n := batchSize + 37
	for i := range n {
		day := i%28 + 1
		b.WriteString("OD")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(",C,Cat,Sub,City,")
		b.WriteString(strconv.Itoa(day))
		b.WriteString("/03/2018,North,1,0,1,TN\n")
	}

	res, err := Read(context.Background(), strings.NewReader(b.String()), Options{Path: "inline", DayFirst: true})
	require.NoError(t, err)
	require.Len(t, res.Transactions, n)
	for i, tx := range res.Transactions {
		if tx.OrderID != "OD"+strconv.Itoa(i) {
			t.Fatalf("row %d out of order: %s", i, tx.OrderID)
		}
	}
}

func TestRead_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Read(ctx, strings.NewReader(header+"OD1,H,C,S,X,01/01/2017,North,1,0,1,TN\n"), Options{Path: "inline"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDateParser(t *testing.T) {
	tests := []struct {
		raw      string
		dayFirst bool
		want     time.Time
		ok       bool
	}{
		{"2017-11-08", true, time.Date(2017, 11, 8, 0, 0, 0, 0, time.UTC), true},
		{"08-11-2017", true, time.Date(2017, 11, 8, 0, 0, 0, 0, time.UTC), true},
		{"08-11-2017", false, time.Date(2017, 8, 11, 0, 0, 0, 0, time.UTC), true},
		{"6/1/2016", false, time.Date(2016, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"25/12/2016", false, time.Date(2016, 12, 25, 0, 0, 0, 0, time.UTC), true},
		{"31/02/2023", true, time.Time{}, false},
		{"", true, time.Time{}, false},
		{"yesterday", false, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NewDateParser("", tt.dayFirst).Parse(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}
