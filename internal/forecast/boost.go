package forecast

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Booster fits an ensemble of shallow regression trees to squared-error
// residuals, each scaled by LearningRate.
type Booster struct {
	Rounds       int
	MaxDepth     int
	LearningRate float64
	MinLeaf      int
}

func DefaultBooster() Booster {
	return Booster{Rounds: 100, MaxDepth: 3, LearningRate: 0.1, MinLeaf: 1}
}

type BoostedModel struct {
	base     float64
	rate     float64
	features int
	trees    []*treeNode
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func (b Booster) withDefaults() Booster {
	d := DefaultBooster()
	if b.Rounds <= 0 {
		b.Rounds = d.Rounds
	}
	if b.MaxDepth <= 0 {
		b.MaxDepth = d.MaxDepth
	}
	if b.LearningRate <= 0 {
		b.LearningRate = d.LearningRate
	}
	if b.MinLeaf <= 0 {
		b.MinLeaf = d.MinLeaf
	}
	return b
}

func (b Booster) Fit(x [][]float64, y []float64) (*BoostedModel, error) {
	if len(x) == 0 {
		return nil, errors.New("no training rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("feature rows %d != targets %d", len(x), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}

	b = b.withDefaults()
	m := &BoostedModel{
		base:     stat.Mean(y, nil),
		rate:     b.LearningRate,
		features: width,
		trees:    make([]*treeNode, 0, b.Rounds),
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
	}
	residual := make([]float64, len(y))
	rows := make([]int, len(y))
	for i := range rows {
		rows[i] = i
	}

	for range b.Rounds {
		floats.SubTo(residual, y, pred)
		tree := b.grow(x, residual, rows, 0)
		m.trees = append(m.trees, tree)
		for i := range pred {
			pred[i] += m.rate * tree.predict(x[i])
		}
	}
	return m, nil
}

func (m *BoostedModel) Predict(x []float64) (float64, error) {
	if len(x) != m.features {
		return 0, fmt.Errorf("got %d features, model expects %d", len(x), m.features)
	}
	out := m.base
	for _, t := range m.trees {
		out += m.rate * t.predict(x)
	}
	return out, nil
}

func (b Booster) grow(x [][]float64, r []float64, rows []int, depth int) *treeNode {
	sum := 0.0
	for _, i := range rows {
		sum += r[i]
	}
	leaf := &treeNode{leaf: true, value: sum / float64(len(rows))}
	if depth >= b.MaxDepth || len(rows) < 2*b.MinLeaf {
		return leaf
	}

	feature, threshold, ok := b.bestSplit(x, r, rows, sum)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, i := range rows {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      b.grow(x, r, left, depth+1),
		right:     b.grow(x, r, right, depth+1),
	}
}

// bestSplit maximizes sumL²/nL + sumR²/nR, which is the same as minimizing
// the squared error of the two child means.
func (b Booster) bestSplit(x [][]float64, r []float64, rows []int, total float64) (int, float64, bool) {
	n := float64(len(rows))
	baseScore := total * total / n
	bestScore := baseScore
	bestFeature, bestThreshold, found := 0, 0.0, false

	sorted := slices.Clone(rows)
	for f := range len(x[rows[0]]) {
		slices.SortFunc(sorted, func(a, c int) int {
			return cmp.Compare(x[a][f], x[c][f])
		})

		var leftSum float64
		for k := 0; k < len(sorted)-1; k++ {
			leftSum += r[sorted[k]]
			nl := k + 1
			nr := len(sorted) - nl
			if nl < b.MinLeaf || nr < b.MinLeaf {
				continue
			}
			cur, next := x[sorted[k]][f], x[sorted[k+1]][f]
			if cur == next {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr)
			if score > bestScore+1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = (cur + next) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
