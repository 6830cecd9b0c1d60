package forecast

import "slices"

// LabelEncoder maps each distinct label to its rank in sorted order.
type LabelEncoder struct {
	labels []string
	codes  map[string]int
}

func FitLabelEncoder(values []string) *LabelEncoder {
	labels := slices.Clone(values)
	slices.Sort(labels)
	labels = slices.Compact(labels)

	codes := make(map[string]int, len(labels))
	for i, l := range labels {
		codes[l] = i
	}
	return &LabelEncoder{labels: labels, codes: codes}
}

func (e *LabelEncoder) Encode(label string) (int, bool) {
	code, ok := e.codes[label]
	return code, ok
}

func (e *LabelEncoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.labels) {
		return "", false
	}
	return e.labels[code], true
}

func (e *LabelEncoder) Labels() []string {
	return slices.Clone(e.labels)
}

func (e *LabelEncoder) Len() int {
	return len(e.labels)
}
