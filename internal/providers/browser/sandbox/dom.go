package sandbox

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// DOM provides a lightweight document model for the shell page
type DOM struct {
	root    *Element
	head    *Element
	body    *Element
	changes []DOMChange
	mu      sync.RWMutex
}

// Element represents a DOM element
type Element struct {
	TagName    string
	Attributes map[string]string
	Text       string
	Children   []*Element
	Parent     *Element
}

// NewElement creates a detached element
func NewElement(tag string, attrs map[string]string) *Element {
	el := &Element{
		TagName:    strings.ToLower(tag),
		Attributes: make(map[string]string, len(attrs)),
	}
	for k, v := range attrs {
		el.Attributes[k] = v
	}
	return el
}

// NewDOM creates an empty html/head/body document
func NewDOM() *DOM {
	root := NewElement("html", nil)
	head := NewElement("head", nil)
	body := NewElement("body", nil)
	root.addChild(head)
	root.addChild(body)
	return &DOM{root: root, head: head, body: body}
}

// ParseDocument seeds a DOM from the shell's HTML document
func ParseDocument(r io.Reader) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	d := NewDOM()
	doc.Find("head").First().Children().Each(func(_ int, s *goquery.Selection) {
		d.head.addChild(convert(s))
	})
	doc.Find("body").First().Children().Each(func(_ int, s *goquery.Selection) {
		d.body.addChild(convert(s))
	})
	return d, nil
}

func convert(s *goquery.Selection) *Element {
	el := NewElement(goquery.NodeName(s), nil)
	if node := s.Get(0); node != nil {
		for _, a := range node.Attr {
			el.Attributes[a.Key] = a.Val
		}
	}
	children := s.Children()
	if children.Length() == 0 {
		el.Text = strings.TrimSpace(s.Text())
	}
	children.Each(func(_ int, c *goquery.Selection) {
		el.addChild(convert(c))
	})
	return el
}

// Head returns the head element
func (d *DOM) Head() *Element { return d.head }

// Body returns the body element
func (d *DOM) Body() *Element { return d.body }

// Query finds elements by a simple selector: #id, .class, tag, [attr],
// tag[attr] or tag[attr="value"]
func (d *DOM) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	match := compile(strings.TrimSpace(selector))
	var out []*Element
	d.root.walk(func(el *Element) {
		if match(el) {
			out = append(out, el)
		}
	})
	return out
}

// Nonce returns the CSP nonce of the first script element carrying one
func (d *DOM) Nonce() string {
	for _, el := range d.Query("script[nonce]") {
		if n := d.Attribute(el, "nonce"); n != "" {
			return n
		}
	}
	return ""
}

// Scripts returns the script elements in the head, in document order
func (d *DOM) Scripts() []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Element
	for _, el := range d.head.Children {
		if el.TagName == "script" {
			out = append(out, el)
		}
	}
	return out
}

// AppendChild attaches child to parent and records the change
func (d *DOM) AppendChild(parent, child *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent.addChild(child)
	d.changes = append(d.changes, DOMChange{
		Type:   "append_child",
		Target: parent.TagName,
		Name:   child.TagName,
		Value:  child.Attributes["src"],
	})
}

// Attribute reads an attribute
func (d *DOM) Attribute(el *Element, name string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return el.Attributes[name]
}

// SetAttribute writes an attribute and records the change
func (d *DOM) SetAttribute(el *Element, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el.Attributes[name] = value
	d.changes = append(d.changes, DOMChange{Type: "set_attribute", Target: el.TagName, Name: name, Value: value})
}

// Text reads an element's text content
func (d *DOM) Text(el *Element) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return el.Text
}

// SetText replaces an element's text content
func (d *DOM) SetText(el *Element, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el.Text = text
	el.Children = nil
	d.changes = append(d.changes, DOMChange{Type: "set_text", Target: el.TagName, Value: text})
}

// Changes returns accumulated DOM changes
func (d *DOM) Changes() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

func (e *Element) addChild(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

func (e *Element) walk(fn func(*Element)) {
	fn(e)
	for _, c := range e.Children {
		c.walk(fn)
	}
}

// compile turns a simple selector into a predicate
func compile(selector string) func(*Element) bool {
	switch {
	case strings.HasPrefix(selector, "#"):
		id := selector[1:]
		return func(el *Element) bool { return el.Attributes["id"] == id }
	case strings.HasPrefix(selector, "."):
		class := selector[1:]
		return func(el *Element) bool {
			for _, c := range strings.Fields(el.Attributes["class"]) {
				if c == class {
					return true
				}
			}
			return false
		}
	}

	tag, attr, value, hasValue := selector, "", "", false
	if i := strings.IndexByte(selector, '['); i >= 0 && strings.HasSuffix(selector, "]") {
		tag = selector[:i]
		attr = selector[i+1 : len(selector)-1]
		if j := strings.IndexByte(attr, '='); j >= 0 {
			value = strings.Trim(attr[j+1:], `"'`)
			attr = attr[:j]
			hasValue = true
		}
	}

	return func(el *Element) bool {
		if tag != "" && tag != "*" && !strings.EqualFold(el.TagName, tag) {
			return false
		}
		if attr == "" {
			return true
		}
		v, ok := el.Attributes[attr]
		if !ok {
			return false
		}
		return !hasValue || v == value
	}
}
