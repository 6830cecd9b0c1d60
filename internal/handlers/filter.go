package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"supermart-dashboard/internal/aggregate"
	"supermart-dashboard/internal/errors"
)

// signalValue accepts a bound input as either a JSON string or number.
type signalValue string

func (s *signalValue) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = signalValue(t)
	case float64:
		*s = signalValue(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return fmt.Errorf("unsupported filter value %s", b)
	}
	return nil
}

type filterParams struct {
	Category    signalValue `json:"category"`
	City        signalValue `json:"city"`
	Year        signalValue `json:"year"`
	Month       signalValue `json:"month"`
	MinDiscount signalValue `json:"min_discount"`
	MaxDiscount signalValue `json:"max_discount"`
}

type filterSignals struct {
	Filter filterParams `json:"filter"`
}

// salesFilter reads the sales filter from datastar signals on feed
// requests and from the query string otherwise.
func salesFilter(r *http.Request) (aggregate.Filter, error) {
	var p filterParams
	if r.Header.Get("Datastar-Request") != "" {
		var s filterSignals
		if err := datastar.ReadSignals(r, &s); err != nil {
			return aggregate.Filter{}, errors.BadRequestWrap(err, "Invalid filter signals")
		}
		p = s.Filter
	} else {
		q := r.URL.Query()
		p = filterParams{
			Category:    signalValue(q.Get("category")),
			City:        signalValue(q.Get("city")),
			Year:        signalValue(q.Get("year")),
			Month:       signalValue(q.Get("month")),
			MinDiscount: signalValue(q.Get("min_discount")),
			MaxDiscount: signalValue(q.Get("max_discount")),
		}
	}
	return p.filter()
}

func (p filterParams) filter() (aggregate.Filter, error) {
	f := aggregate.Filter{
		Category: strings.TrimSpace(string(p.Category)),
		City:     strings.TrimSpace(string(p.City)),
	}

	var err error
	if f.Year, err = optionalInt(p.Year, "year", 1, 9999); err != nil {
		return aggregate.Filter{}, err
	}
	if f.Month, err = optionalInt(p.Month, "month", 1, 12); err != nil {
		return aggregate.Filter{}, err
	}
	if f.MinDiscount, err = optionalRatio(p.MinDiscount, "min_discount"); err != nil {
		return aggregate.Filter{}, err
	}
	if f.MaxDiscount, err = optionalRatio(p.MaxDiscount, "max_discount"); err != nil {
		return aggregate.Filter{}, err
	}
	if f.MinDiscount != nil && f.MaxDiscount != nil && *f.MinDiscount > *f.MaxDiscount {
		return aggregate.Filter{}, errors.BadRequest("min_discount must not exceed max_discount")
	}
	return f, nil
}

func optionalInt(v signalValue, name string, lo, hi int) (int, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, errors.BadRequest(fmt.Sprintf("%s must be between %d and %d", name, lo, hi))
	}
	return n, nil
}

func optionalRatio(v signalValue, name string) (*float64, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return nil, nil
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil || x < 0 || x > 1 {
		return nil, errors.BadRequest(fmt.Sprintf("%s must be between 0 and 1", name))
	}
	return &x, nil
}
