// Package display models the host-owned render target a trial draws into: a
// small DOM with innerHTML-style updates, simple selectors and click
// listeners.
package display

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is the display element handed to a trial. It is safe for use by the
// controller goroutine and an input goroutine at the same time.
type Element struct {
	mu        sync.Mutex
	root      *html.Node
	listeners map[*html.Node]func()
}

// New returns an empty display element.
func New() *Element {
	return &Element{
		root:      &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div},
		listeners: make(map[*html.Node]func()),
	}
}

// SetInnerHTML replaces the whole content of the element.
func (e *Element) SetInnerHTML(markup string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.replace(e.root, markup)
}

// SetInner replaces the content of the first node matching sel.
func (e *Element) SetInner(sel, markup string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.query(sel)
	if n == nil {
		return fmt.Errorf("set inner: no element matches %q", sel)
	}
	return e.replace(n, markup)
}

// Append parses markup and appends it to the first node matching sel.
func (e *Element) Append(sel, markup string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.query(sel)
	if n == nil {
		return fmt.Errorf("append: no element matches %q", sel)
	}
	nodes, err := parse(markup)
	if err != nil {
		return err
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// AddClass adds class to the first node matching sel.
func (e *Element) AddClass(sel, class string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.query(sel)
	if n == nil {
		return false
	}
	if hasClass(n, class) {
		return true
	}
	for i, a := range n.Attr {
		if a.Key == "class" {
			n.Attr[i].Val = strings.TrimSpace(a.Val + " " + class)
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	return true
}

// HasClass reports whether the first node matching sel carries class.
func (e *Element) HasClass(sel, class string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.query(sel)
	return n != nil && hasClass(n, class)
}

// Exists reports whether any node matches sel.
func (e *Element) Exists(sel string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query(sel) != nil
}

// Attr returns attribute key of the first node matching sel.
func (e *Element) Attr(sel, key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := e.query(sel); n != nil {
		return attr(n, key)
	}
	return ""
}

// Text returns the text content of the first node matching sel, or of the
// whole element when sel is empty.
func (e *Element) Text(sel string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.root
	if sel != "" {
		n = e.query(sel)
	}
	if n == nil {
		return ""
	}
	var b strings.Builder
	collectText(n, &b)
	return strings.TrimSpace(b.String())
}

// HTML renders the current content.
func (e *Element) HTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var buf bytes.Buffer
	for c := e.root.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// Clear removes all content and listeners.
func (e *Element) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	removeChildren(e.root)
	clear(e.listeners)
}

// AddListener attaches fn as the click listener of the first node matching
// sel, replacing any previous listener on that node.
func (e *Element) AddListener(sel string, fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.query(sel)
	if n == nil {
		return fmt.Errorf("add listener: no element matches %q", sel)
	}
	e.listeners[n] = fn
	return nil
}

// RemoveListener detaches the click listener of the first node matching sel.
func (e *Element) RemoveListener(sel string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := e.query(sel); n != nil {
		delete(e.listeners, n)
	}
}

// Listening reports whether a click on sel would reach a listener.
func (e *Element) Listening(sel string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlersFor(sel)) > 0
}

// Click dispatches a click on the first node matching sel. Listeners on the
// node and its ancestors run in bubbling order, outside the element lock.
// Click reports whether any listener ran.
func (e *Element) Click(sel string) bool {
	e.mu.Lock()
	handlers := e.handlersFor(sel)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
	return len(handlers) > 0
}

// #region internals
func (e *Element) handlersFor(sel string) []func() {
	n := e.query(sel)
	if n == nil {
		return nil
	}
	var out []func()
	for ; n != nil && n != e.root; n = n.Parent {
		if fn, ok := e.listeners[n]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (e *Element) replace(n *html.Node, markup string) error {
	nodes, err := parse(markup)
	if err != nil {
		return err
	}
	removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	e.prune()
	return nil
}

// prune drops listeners whose node is no longer attached.
func (e *Element) prune() {
	for n := range e.listeners {
		if !e.attached(n) {
			delete(e.listeners, n)
		}
	}
}

func (e *Element) attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == e.root {
			return true
		}
	}
	return false
}

func (e *Element) query(sel string) *html.Node {
	match := matcher(sel)
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil && found == nil; c = c.NextSibling {
			if c.Type == html.ElementNode && match(c) {
				found = c
				return
			}
			walk(c)
		}
	}
	walk(e.root)
	return found
}

func matcher(sel string) func(*html.Node) bool {
	switch {
	case strings.HasPrefix(sel, "#"):
		id := sel[1:]
		return func(n *html.Node) bool { return attr(n, "id") == id }
	case strings.HasPrefix(sel, "."):
		class := sel[1:]
		return func(n *html.Node) bool { return hasClass(n, class) }
	}
	return func(n *html.Node) bool { return n.Data == sel }
}

func parse(markup string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return nodes, nil
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
// #endregion internals
