package sites

import (
	"strings"

	"golang.org/x/net/html"
)

// selector is a small CSS subset: space-separated descendant parts, each of
// the form tag, .class, #id, tag.class.other, tag#id, tag[attr] or
// tag[attr=val]. A trailing "@name" reads that attribute instead of the
// text content. "." or "" alone selects the context node itself.
type selector struct {
	parts []simpleSelector
	attr  string
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
}

func parseSelector(s string) selector {
	s = strings.TrimSpace(s)
	var sel selector
	if i := strings.LastIndexByte(s, '@'); i >= 0 && !strings.Contains(s[i:], "]") {
		sel.attr = strings.TrimSpace(s[i+1:])
		s = strings.TrimSpace(s[:i])
	}
	if s == "." {
		s = ""
	}
	for _, part := range strings.Fields(s) {
		sel.parts = append(sel.parts, parseSimpleSelector(part))
	}
	return sel
}

func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}
	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}
	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		for _, c := range strings.Split(sel[idx+1:], ".") {
			if c != "" {
				s.classes = append(s.classes, c)
			}
		}
		sel = sel[:idx]
	}
	s.tag = strings.ToLower(sel)
	return s
}

// all returns matching descendants of root in document order, without
// duplicates. An empty selector returns root.
func (s selector) all(root *html.Node) []*html.Node {
	if len(s.parts) == 0 {
		return []*html.Node{root}
	}
	matches := []*html.Node{root}
	for _, part := range s.parts {
		seen := make(map[*html.Node]bool)
		var next []*html.Node
		for _, ctx := range matches {
			for _, n := range descendants(ctx, part) {
				if !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		matches = next
	}
	return matches
}

func (s selector) first(root *html.Node) *html.Node {
	if m := s.all(root); len(m) > 0 {
		return m[0]
	}
	return nil
}

// value returns the attribute or text of the first match.
func (s selector) value(root *html.Node) string {
	n := s.first(root)
	if n == nil {
		return ""
	}
	if s.attr != "" {
		return getAttr(n, s.attr)
	}
	return textContent(n)
}

func descendants(root *html.Node, s simpleSelector) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if matchesSelector(c, s) {
				results = append(results, c)
			}
			walk(c)
		}
	}
	walk(root)
	return results
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && getAttr(n, "id") != s.id {
		return false
	}
	if len(s.classes) > 0 {
		have := strings.Fields(getAttr(n, "class"))
		for _, want := range s.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if s.attrKey != "" {
		if !hasAttr(n, s.attrKey) {
			return false
		}
		if s.attrVal != "" && getAttr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// textContent joins the text nodes under n, skipping script and style.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
