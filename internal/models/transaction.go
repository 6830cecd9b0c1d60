package models

import "time"

type Transaction struct {
	OrderID      string
	OrderDate    time.Time
	CustomerName string
	Region       string
	City         string
	Category     string
	SubCategory  string
	Sales        float64
	Profit       float64
	Discount     float64
}

func (tx Transaction) Bucket() BucketKey {
	return BucketOf(tx.OrderDate)
}

func (tx Transaction) Segment() Segment {
	return Segment{Category: tx.Category, SubCategory: tx.SubCategory}
}

// Segment is a (category, sub-category) pair.
type Segment struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
}

func (s Segment) String() string {
	return s.Category + " > " + s.SubCategory
}
