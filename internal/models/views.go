package models

type CategoryValue struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type HierarchyNode struct {
	Label    string          `json:"label"`
	Value    float64         `json:"value"`
	Children []HierarchyNode `json:"children,omitempty"`
}

type KPIs struct {
	TotalSales      float64 `json:"total_sales"`
	TotalProfit     float64 `json:"total_profit"`
	Orders          int     `json:"orders"`
	AvgOrderValue   float64 `json:"avg_order_value"`
	AvgDiscount     float64 `json:"avg_discount"`
	Customers       int     `json:"customers"`
	TransactionRows int     `json:"transaction_rows"`
}

type CustomerStat struct {
	Customer    string  `json:"customer"`
	RecencyDays int     `json:"recency_days"`
	Frequency   int     `json:"frequency"`
	TotalSpent  float64 `json:"total_spent"`
	CLV         float64 `json:"clv"`
	Segment     string  `json:"segment"`
}

type Heatmap struct {
	Rows   []string    `json:"rows"`
	Cols   []string    `json:"cols"`
	Values [][]float64 `json:"values"`
}

type ScatterPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size"`
	Category string  `json:"category"`
	Label    string  `json:"label"`
}

type Accuracy struct {
	Model string  `json:"model"`
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	MAPE  float64 `json:"mape"`
}

type Recommendation struct {
	Label string `json:"label"`
	Units int    `json:"units"`
}
