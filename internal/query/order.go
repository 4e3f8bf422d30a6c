package query

import "strings"

// OrderSpec is one "+field" / "-field" sort token, parsed.
type OrderSpec struct {
	Key        string
	Descending bool
}

// ParseOrder parses an order token. A leading "-" sorts descending, a leading
// "+" or no marker sorts ascending.
func ParseOrder(token string) OrderSpec {
	token = strings.TrimSpace(token)
	switch {
	case strings.HasPrefix(token, "-"):
		return OrderSpec{Key: token[1:], Descending: true}
	case strings.HasPrefix(token, "+"):
		return OrderSpec{Key: token[1:]}
	}
	return OrderSpec{Key: token}
}

// ParseOrders parses a list of order tokens.
func ParseOrders(tokens []string) []OrderSpec {
	out := make([]OrderSpec, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, ParseOrder(t))
	}
	return out
}

func (o OrderSpec) String() string {
	if o.Descending {
		return "-" + o.Key
	}
	return "+" + o.Key
}

// sortKey is a resolved order key over an output column.
type sortKey struct {
	column     string
	descending bool
}
