package loader

import (
	"strings"
	"time"
)

var (
	dayFirstLayouts = []string{
		"02-01-2006", "2-1-2006", "02/01/2006", "2/1/2006",
		"02-01-06", "2-1-06", "02/01/06", "2/1/06",
	}
	monthFirstLayouts = []string{
		"01-02-2006", "1-2-2006", "01/02/2006", "1/2/2006",
		"01-02-06", "1-2-06", "01/02/06", "1/2/06",
	}
	isoLayouts = []string{
		"2006-01-02", "2006/01/02", "2006-01-02 15:04:05", time.RFC3339,
	}
)

// DateParser turns raw date cells into calendar dates. Calendar-invalid
// values such as 31/02/2023 never parse.
type DateParser struct {
	layouts []string
}

func NewDateParser(format string, dayFirst bool) *DateParser {
	if format != "" {
		return &DateParser{layouts: []string{format}}
	}

	layouts := make([]string, 0, len(isoLayouts)+len(dayFirstLayouts)+len(monthFirstLayouts))
	layouts = append(layouts, isoLayouts...)
	if dayFirst {
		layouts = append(layouts, dayFirstLayouts...)
		layouts = append(layouts, monthFirstLayouts...)
	} else {
		layouts = append(layouts, monthFirstLayouts...)
		layouts = append(layouts, dayFirstLayouts...)
	}
	return &DateParser{layouts: layouts}
}

func (p *DateParser) Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range p.layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
