package api

import (
	"net/url"
	"strconv"
)

// ListParams filters the list and count endpoints. Zero values are omitted
// from the query: empty strings, zero Limit/Offset and nil pointers.
type ListParams struct {
	DtFrom    string
	DtTo      string
	Hour      *int
	DayOfWeek *int
	IsWeekend *bool
	Limit     int
	Offset    int
	OrderDesc *bool
}

// Values encodes every set filter, including paging and ordering.
func (p ListParams) Values() url.Values {
	v := p.filterValues()
	if p.Limit != 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset != 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.OrderDesc != nil {
		v.Set("order_desc", strconv.FormatBool(*p.OrderDesc))
	}
	return v
}

// filterValues encodes only what narrows the row set; counts ignore paging.
func (p ListParams) filterValues() url.Values {
	v := url.Values{}
	if p.DtFrom != "" {
		v.Set("dt_from", p.DtFrom)
	}
	if p.DtTo != "" {
		v.Set("dt_to", p.DtTo)
	}
	if p.Hour != nil {
		v.Set("hour", strconv.Itoa(*p.Hour))
	}
	if p.DayOfWeek != nil {
		v.Set("day_of_week", strconv.Itoa(*p.DayOfWeek))
	}
	if p.IsWeekend != nil {
		v.Set("is_weekend", strconv.FormatBool(*p.IsWeekend))
	}
	return v
}

// Int, Bool and Float build optional parameters inline.
func Int(v int) *int           { return &v }
func Bool(v bool) *bool        { return &v }
func Float(v float64) *float64 { return &v }
