package dashboard

import "reqdash/internal/service"

// FilterRows returns the requests that pass f, preserving order.
// With the ALL filter the input is returned as a copy, unchanged.
func FilterRows(rows []service.Request, f service.Filter) []service.Request {
	out := make([]service.Request, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Count tallies rows by status. Always computed over the full list,
// never the filtered view.
func Count(rows []service.Request) service.Counters {
	var c service.Counters
	for _, r := range rows {
		switch r.Status {
		case service.StatusNew:
			c.New++
		case service.StatusInProgress:
			c.InProgress++
		case service.StatusDone:
			c.Done++
		}
	}
	return c
}
