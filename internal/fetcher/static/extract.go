package static

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// declarationRe finds font-family and font declarations in a style sheet
	// or a style attribute.
	declarationRe = regexp.MustCompile(`(?i)(?:^|[;{\s])(font-family|font)\s*:\s*([^;{}]+)`)
	commentRe     = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

var sizeKeywords = map[string]struct{}{
	"xx-small": {}, "x-small": {}, "small": {}, "medium": {}, "large": {},
	"x-large": {}, "xx-large": {}, "xxx-large": {}, "smaller": {}, "larger": {},
}

// extractFonts returns raw font-family values declared in inline style
// attributes under <body> and in every <style> element.
func extractFonts(doc *goquery.Document) []string {
	var out []string
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		out = append(out, declaredFamilies(s.Text())...)
	})
	doc.Find("body [style], body[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		out = append(out, declaredFamilies(style)...)
	})
	return out
}

// declaredFamilies pulls the family list out of every font-family and font
// declaration in css.
func declaredFamilies(css string) []string {
	css = commentRe.ReplaceAllString(css, " ")
	var out []string
	for _, m := range declarationRe.FindAllStringSubmatch(css, -1) {
		value := strings.TrimSpace(stripImportant(m[2]))
		if strings.EqualFold(m[1], "font") {
			value = shorthandFamily(value)
		}
		if value == "" || isCSSWideKeyword(value) {
			continue
		}
		out = append(out, requote(value))
	}
	return out
}

// shorthandFamily returns the family part of a font shorthand value, which
// follows the font-size (and optional /line-height). System font keywords
// such as "menu" have no family part.
func shorthandFamily(value string) string {
	fields := strings.Fields(value)
	for i, field := range fields {
		if strings.ContainsAny(field, `,"'`) {
			break
		}
		if !isFontSize(field) {
			continue
		}
		rest := fields[i+1:]
		if len(rest) > 0 && strings.HasPrefix(rest[0], "/") {
			if rest[0] == "/" && len(rest) > 1 {
				rest = rest[2:]
			} else {
				rest = rest[1:]
			}
		}
		return strings.Join(rest, " ")
	}
	return ""
}

func isFontSize(token string) bool {
	token, _, _ = strings.Cut(strings.ToLower(token), "/")
	if _, ok := sizeKeywords[token]; ok {
		return true
	}
	if token == "" {
		return false
	}
	i := 0
	for i < len(token) && (token[i] >= '0' && token[i] <= '9' || token[i] == '.') {
		i++
	}
	// a bare number is a font-weight, a size needs a unit or a percentage
	return i > 0 && i < len(token)
}

// requote rewrites single-quoted strings with double quotes, the form a
// browser reports for computed font-family values.
func requote(value string) string {
	if !strings.Contains(value, "'") {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	var quote rune
	escaped := false
	for _, r := range value {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
			b.WriteRune('"')
		case r == quote:
			quote = 0
			b.WriteRune('"')
		case quote == '\'' && r == '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripImportant(value string) string {
	if idx := strings.Index(strings.ToLower(value), "!important"); idx >= 0 {
		return value[:idx]
	}
	return value
}

func isCSSWideKeyword(value string) bool {
	switch strings.ToLower(value) {
	case "inherit", "initial", "unset", "revert", "revert-layer":
		return true
	}
	return false
}

// extractLinks resolves every anchor href against the page URL (or its
// <base href>) and keeps http(s) targets.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = ref
		}
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link := resolve(base, href); link != "" {
			out = append(out, link)
		}
	})
	return out
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
