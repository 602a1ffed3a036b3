package static

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// listingPage pages through a server-rendered listing by following its next
// link.
type listingPage struct {
	session *session
	current document
	seen    map[string]struct{}
}

// PreviewLinks returns the resolved hrefs of the preview elements on the
// current listing page.
func (l *listingPage) PreviewLinks(context.Context) ([]string, error) {
	base, err := url.Parse(l.current.finalURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	var out []string
	l.current.doc.Find(l.session.browser.cfg.PreviewSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			href, ok = s.Find("a[href]").First().Attr("href")
		}
		if !ok {
			return
		}
		if link := resolve(base, href); link != "" {
			out = append(out, link)
		}
	})
	return out, nil
}

// NextPage loads the page behind the listing's next link. It reports false when
// there is no next link or it points at a page already seen.
func (l *listingPage) NextPage(ctx context.Context) (bool, error) {
	next := l.nextURL()
	if next == "" {
		return false, nil
	}
	if _, dup := l.seen[next]; dup {
		return false, nil
	}
	fetched, err := l.session.get(ctx, next)
	if err != nil {
		return false, err
	}
	if fetched.status >= 400 {
		return false, fmt.Errorf("listing page %s returned status %d", next, fetched.status)
	}
	l.seen[next] = struct{}{}
	l.seen[fetched.finalURL] = struct{}{}
	l.current = fetched
	l.session.browser.logger.Debug("listing advanced", zap.String("url", next))
	return true, nil
}

func (l *listingPage) nextURL() string {
	base, err := url.Parse(l.current.finalURL)
	if err != nil {
		return ""
	}
	doc := l.current.doc
	if href, ok := doc.Find(`a[rel~="next"][href], link[rel~="next"][href]`).First().Attr("href"); ok {
		return resolve(base, href)
	}
	text := l.session.browser.cfg.NextText
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), text) {
			return true
		}
		href, _ := s.Attr("href")
		found = resolve(base, href)
		return false
	})
	if found != "" {
		u, err := url.Parse(found)
		if err == nil && u.Fragment != "" {
			// in-page anchors ("#") do not load a new listing page
			u.Fragment = ""
			if u.String() == strings.SplitN(l.current.finalURL, "#", 2)[0] {
				return ""
			}
		}
	}
	return found
}
