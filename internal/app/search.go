package app

import (
	"math"
	"strings"

	"hostel_finder/internal/domain"
)

// SearchQuery holds the raw browse inputs. Empty bounds mean no limit.
type SearchQuery struct {
	Query    string
	MinPrice string
	MaxPrice string
}

// FilterHostels keeps hostels whose name contains Query (case-insensitive) and
// whose price lies within the bounds. Source order is preserved.
func FilterHostels(hostels []domain.HostelView, q SearchQuery) []domain.HostelView {
	needle := strings.ToLower(strings.TrimSpace(q.Query))
	lo := parseBound(q.MinPrice, math.Inf(-1))
	hi := parseBound(q.MaxPrice, math.Inf(1))

	out := make([]domain.HostelView, 0, len(hostels))
	for _, h := range hostels {
		if needle != "" && !strings.Contains(strings.ToLower(h.Name), needle) {
			continue
		}
		p, err := ParsePrice(h.Price)
		if err != nil {
			continue
		}
		if p < lo || p > hi {
			continue
		}
		out = append(out, h)
	}
	return out
}

// an unparsable bound is treated like an empty one
func parseBound(s string, def float64) float64 {
	if strings.TrimSpace(s) == "" {
		return def
	}
	v, err := ParsePrice(s)
	if err != nil {
		return def
	}
	return v
}
