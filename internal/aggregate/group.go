package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"supermart-dashboard/internal/models"
)

type Dimension int

const (
	DimRegion Dimension = iota
	DimCity
	DimCategory
	DimSubCategory
	DimCustomer
	DimWeekday
	DimDiscount
)

func (d Dimension) String() string {
	switch d {
	case DimRegion:
		return "region"
	case DimCity:
		return "city"
	case DimCategory:
		return "category"
	case DimSubCategory:
		return "sub_category"
	case DimCustomer:
		return "customer"
	case DimWeekday:
		return "weekday"
	case DimDiscount:
		return "discount"
	default:
		return fmt.Sprintf("dimension(%d)", int(d))
	}
}

func (d Dimension) label(tx *models.Transaction) string {
	switch d {
	case DimRegion:
		return tx.Region
	case DimCity:
		return tx.City
	case DimCategory:
		return tx.Category
	case DimSubCategory:
		return tx.SubCategory
	case DimCustomer:
		return tx.CustomerName
	case DimWeekday:
		return tx.OrderDate.Weekday().String()
	case DimDiscount:
		return strconv.FormatFloat(tx.Discount, 'f', 2, 64)
	default:
		return ""
	}
}

type Granularity int

const (
	NoBucket Granularity = iota
	ByDay
	ByMonth
	ByYear
)

func (g Granularity) truncate(t time.Time) time.Time {
	switch g {
	case ByDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case ByMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case ByYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

type Field int

const (
	FieldSales Field = iota
	FieldProfit
	FieldDiscount
	FieldOrderID
	FieldCustomer
)

func (f Field) numeric() bool {
	return f == FieldSales || f == FieldProfit || f == FieldDiscount
}

func (f Field) number(tx *models.Transaction) float64 {
	switch f {
	case FieldSales:
		return tx.Sales
	case FieldProfit:
		return tx.Profit
	case FieldDiscount:
		return tx.Discount
	default:
		return 0
	}
}

func (f Field) text(tx *models.Transaction) string {
	switch f {
	case FieldOrderID:
		return tx.OrderID
	case FieldCustomer:
		return tx.CustomerName
	case FieldSales:
		return decimal.NewFromFloat(tx.Sales).String()
	case FieldProfit:
		return decimal.NewFromFloat(tx.Profit).String()
	case FieldDiscount:
		return decimal.NewFromFloat(tx.Discount).String()
	default:
		return ""
	}
}

type Reduction int

const (
	Sum Reduction = iota
	Mean
	Count
	NUnique
)

// Spec describes one group-by: zero or more categorical keys, an optional
// time bucket, and the reduction applied to one field.
type Spec struct {
	Keys   []Dimension
	Bucket Granularity
	Field  Field
	Reduce Reduction
}

func (s Spec) validate() error {
	if (s.Reduce == Sum || s.Reduce == Mean) && !s.Field.numeric() {
		return fmt.Errorf("reduction %d needs a numeric field, got field %d", s.Reduce, s.Field)
	}
	return nil
}

type Group struct {
	Labels []string
	Period time.Time
	Value  float64
}

type accumulator struct {
	labels   []string
	period   time.Time
	sum      decimal.Decimal
	count    int
	distinct map[string]struct{}
}

func (a *accumulator) value(r Reduction) float64 {
	switch r {
	case Sum:
		return a.sum.InexactFloat64()
	case Mean:
		if a.count == 0 {
			return 0
		}
		return a.sum.Div(decimal.NewFromInt(int64(a.count))).InexactFloat64()
	case Count:
		return float64(a.count)
	case NUnique:
		return float64(len(a.distinct))
	default:
		return 0
	}
}

// GroupBy reduces txs per key. Only keys present in txs appear in the output,
// ordered ascending by period and then by labels.
func GroupBy(txs []models.Transaction, spec Spec) ([]Group, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	groups := make(map[string]*accumulator)
	var keyBuf strings.Builder

	for i := range txs {
		tx := &txs[i]

		var period time.Time
		if spec.Bucket != NoBucket {
			period = spec.Bucket.truncate(tx.OrderDate)
		}

		keyBuf.Reset()
		keyBuf.WriteString(period.Format(time.DateOnly))
		labels := make([]string, len(spec.Keys))
		for j, dim := range spec.Keys {
			labels[j] = dim.label(tx)
			keyBuf.WriteByte(0)
			keyBuf.WriteString(labels[j])
		}
		key := keyBuf.String()

		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{labels: labels, period: period, sum: decimal.Zero}
			if spec.Reduce == NUnique {
				acc.distinct = make(map[string]struct{})
			}
			groups[key] = acc
		}

		acc.count++
		switch spec.Reduce {
		case Sum, Mean:
			acc.sum = acc.sum.Add(decimal.NewFromFloat(spec.Field.number(tx)))
		case NUnique:
			acc.distinct[spec.Field.text(tx)] = struct{}{}
		}
	}

	result := make([]Group, 0, len(groups))
	for _, acc := range groups {
		result = append(result, Group{
			Labels: acc.labels,
			Period: acc.period,
			Value:  acc.value(spec.Reduce),
		})
	}

	slices.SortFunc(result, func(a, b Group) int {
		if c := a.Period.Compare(b.Period); c != 0 {
			return c
		}
		return slices.Compare(a.Labels, b.Labels)
	})
	return result, nil
}

// Reduce applies a reduction to all of txs as one group.
func Reduce(txs []models.Transaction, field Field, r Reduction) (float64, error) {
	groups, err := GroupBy(txs, Spec{Field: field, Reduce: r})
	if err != nil {
		return 0, err
	}
	if len(groups) == 0 {
		return 0, nil
	}
	return groups[0].Value, nil
}

func SortByValue(values []models.CategoryValue, descending bool) []models.CategoryValue {
	out := slices.Clone(values)
	slices.SortStableFunc(out, func(a, b models.CategoryValue) int {
		if descending {
			return cmp.Compare(b.Value, a.Value)
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}

func Top(values []models.CategoryValue, limit int) []models.CategoryValue {
	sorted := SortByValue(values, true)
	if len(sorted) <= limit {
		return sorted
	}
	return sorted[:limit]
}
