package headless

import (
	"net/url"
	"strings"
)

// filterLinks keeps absolute http(s) links and drops blanks.
func filterLinks(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, link := range raw {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		u, err := url.Parse(link)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		out = append(out, link)
	}
	return out
}
