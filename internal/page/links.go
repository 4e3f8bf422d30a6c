package page

import (
	"net/url"
	"strconv"
	"strings"
)

// Links renders page URLs for one request. Every query parameter other than
// page is carried over in its original order and encoding.
type Links struct {
	Base     string // scheme, host and path
	RawQuery string // original query string, without "?"
}

// LinksFromURL builds Links from a request URL.
func LinksFromURL(u *url.URL) Links {
	base := *u
	base.RawQuery = ""
	base.Fragment = ""
	return Links{Base: base.String(), RawQuery: u.RawQuery}
}

// Page returns the URL of page n.
func (l Links) Page(n int) string {
	var b strings.Builder
	b.WriteString(l.Base)
	b.WriteString("?page=")
	b.WriteString(strconv.Itoa(n))
	for _, param := range strings.Split(l.RawQuery, "&") {
		if param == "" || isPageParam(param) {
			continue
		}
		b.WriteByte('&')
		b.WriteString(param)
	}
	return b.String()
}

func isPageParam(param string) bool {
	key, _, _ := strings.Cut(param, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}
	return key == "page"
}
