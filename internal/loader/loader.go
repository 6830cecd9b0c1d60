package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"supermart-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

type Options struct {
	Path       string
	DateFormat string
	DayFirst   bool
}

type Result struct {
	Transactions []models.Transaction
	Rows         int
	Dropped      int
}

type column int

const (
	colOrderID column = iota
	colOrderDate
	colCustomer
	colRegion
	colCity
	colCategory
	colSubCategory
	colSales
	colProfit
	colDiscount
	numColumns
)

var columnNames = [numColumns]string{
	colOrderID:     "order id",
	colOrderDate:   "order date",
	colCustomer:    "customer name",
	colRegion:      "region",
	colCity:        "city",
	colCategory:    "category",
	colSubCategory: "sub category",
	colSales:       "sales",
	colProfit:      "profit",
	colDiscount:    "discount",
}

// Load reads the whole file once and returns every row with a valid order
// date and numeric measures, in file order.
func Load(ctx context.Context, opts Options) (*Result, error) {
	file, err := os.Open(opts.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &DataSourceError{Path: opts.Path, Reason: "file not found", Err: err}
		}
		return nil, &DataSourceError{Path: opts.Path, Reason: "open file", Err: err}
	}
	defer file.Close()

	return Read(ctx, file, opts)
}

func Read(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &DataSourceError{Path: opts.Path, Reason: "empty file"}
	}
	if err != nil {
		return nil, &DataSourceError{Path: opts.Path, Reason: "read header", Err: err}
	}

	index, err := resolveColumns(header)
	if err != nil {
		return nil, &DataSourceError{Path: opts.Path, Reason: "schema", Err: err}
	}

	dates := NewDateParser(opts.DateFormat, opts.DayFirst)
	result := &Result{}
	batch := make([][]string, 0, batchSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Rows++
				result.Dropped++
				continue
			}
			return nil, &DataSourceError{Path: opts.Path, Reason: "read row", Err: err}
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := parseBatch(ctx, batch, index, dates, result); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := parseBatch(ctx, batch, index, dates, result); err != nil {
			return nil, err
		}
	}

	if len(result.Transactions) == 0 {
		return nil, &DataSourceError{Path: opts.Path, Reason: "no valid records found"}
	}

	return result, nil
}

func parseBatch(ctx context.Context, batch [][]string, index [numColumns]int, dates *DateParser, result *Result) error {
	parsed := make([]models.Transaction, len(batch))
	valid := make([]bool, len(batch))

	var g errgroup.Group
	g.SetLimit(maxWorkers)

	chunk := (len(batch) + maxWorkers - 1) / maxWorkers
	for start := 0; start < len(batch); start += chunk {
		end := min(start+chunk, len(batch))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				parsed[i], valid[i] = parseTransaction(batch[i], index, dates)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	result.Rows += len(batch)
	for i, ok := range valid {
		if !ok {
			result.Dropped++
			continue
		}
		result.Transactions = append(result.Transactions, parsed[i])
	}
	return nil
}

func parseTransaction(record []string, index [numColumns]int, dates *DateParser) (models.Transaction, bool) {
	field := func(c column) string {
		i := index[c]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	orderDate, ok := dates.Parse(field(colOrderDate))
	if !ok {
		return models.Transaction{}, false
	}

	sales, err := parseNumber(field(colSales))
	if err != nil {
		return models.Transaction{}, false
	}
	profit, err := parseNumber(field(colProfit))
	if err != nil {
		return models.Transaction{}, false
	}
	discount, err := parseNumber(field(colDiscount))
	if err != nil {
		return models.Transaction{}, false
	}

	return models.Transaction{
		OrderID:      field(colOrderID),
		OrderDate:    orderDate,
		CustomerName: field(colCustomer),
		Region:       field(colRegion),
		City:         field(colCity),
		Category:     field(colCategory),
		SubCategory:  field(colSubCategory),
		Sales:        sales,
		Profit:       profit,
		Discount:     discount,
	}, true
}

func parseNumber(raw string) (float64, error) {
	raw = strings.ReplaceAll(raw, ",", "")
	return strconv.ParseFloat(raw, 64)
}

func resolveColumns(header []string) ([numColumns]int, error) {
	var index [numColumns]int
	positions := make(map[string]int, len(header))
	for i, name := range header {
		key := normalizeHeader(name)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	if _, ok := positions[columnNames[colOrderDate]]; !ok {
		return index, fmt.Errorf("no %q column in header %v", columnNames[colOrderDate], header)
	}

	var missing []string
	for c := column(0); c < numColumns; c++ {
		i, ok := positions[columnNames[c]]
		if !ok {
			missing = append(missing, columnNames[c])
			continue
		}
		index[c] = i
	}
	if len(missing) > 0 {
		return index, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

var headerAliases = map[string]string{
	"subcategory":  "sub category",
	"orderid":      "order id",
	"orderdate":    "order date",
	"customername": "customer name",
	"customer":     "customer name",
}

// normalizeHeader maps "Order Date", "order_date" and "ORDER-DATE" to
// "order date".
func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if alias, ok := headerAliases[name]; ok {
		return alias
	}
	return name
}
