package ofx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/golang/glog"
)

// Node is one tagged node of a parsed OFX body: an aggregate (children, no
// text) or a data-bearing leaf (text, no children). Nodes are created and
// mutated only during tree construction; once converted they are discarded.
type Node struct {
	Name     string
	Text     string
	Children []*Node
}

func (n *Node) append(child *Node) {
	n.Children = append(n.Children, child)
}

// Find returns the first descendant at the given slash-separated tag path,
// e.g. Find("SIGNONMSGSRSV1/SONRS"), or nil.
func (n *Node) Find(path string) *Node {
	current := n
	for _, name := range strings.Split(path, "/") {
		var next *Node
		for _, child := range current.Children {
			if child.Name == name {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// FindAll returns all descendants with the given tag, in document order.
func (n *Node) FindAll(name string) []*Node {
	var found []*Node
	for _, child := range n.Children {
		if child.Name == name {
			found = append(found, child)
		}
		found = append(found, child.FindAll(name)...)
	}
	return found
}

// Remove detaches the given direct child and reports whether it was present.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// The body of an OFX document is a series of tags. Each start tag may be
// followed by text (if a data-bearing element) and optionally an end tag
// (not mandatory for OFXv1 syntax). Go's regexp has no backreferences, so
// the close tag is captured separately and checked against the open tag by
// the builder.
var tokenRegex = regexp.MustCompile(`<(?P<tag>[A-Za-z0-9./ ]+?)>` +
	`(?P<text>[^<]+)?` +
	`(</(?P<closetag>[A-Za-z0-9. ]+?)>)?` +
	`(?P<tail>[^<]+)?`)

type tagCount struct {
	opens  int
	closes int
}

// TreeBuilder assembles the post-header OFX body into a rooted Node tree,
// tolerating the missing leaf closing tags of OFXv1 tag soup.
type TreeBuilder struct {
	stack  NodeStack
	root   *Node
	counts map[string]*tagCount
}

// NewTreeBuilder returns an initialized empty tree builder.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{
		stack:  NewStack(),
		counts: make(map[string]*tagCount),
	}
}

// Counts returns the open/close tag counters seen so far for the given tag.
func (b *TreeBuilder) Counts(tag string) (opens, closes int) {
	if c, ok := b.counts[tag]; ok {
		return c.opens, c.closes
	}
	return 0, 0
}

func (b *TreeBuilder) count(tag string) *tagCount {
	c, ok := b.counts[tag]
	if !ok {
		c = &tagCount{}
		b.counts[tag] = c
	}
	return c
}

// Feed consumes successive tag matches from data and grows the tree.
func (b *TreeBuilder) Feed(data string) error {
	for _, match := range tokenRegex.FindAllStringSubmatchIndex(data, -1) {
		group := func(name string) string {
			i := tokenRegex.SubexpIndex(name)
			if match[2*i] < 0 {
				return ""
			}
			return data[match[2*i]:match[2*i+1]]
		}
		tag := group("tag")
		text := strings.TrimSpace(group("text"))
		closeTag := group("closetag")
		if tail := strings.TrimSpace(group("tail")); tail != "" {
			return &TagSoupError{
				Reason: fmt.Sprintf("tail text %q at position=[%d:%d]", tail, match[0], match[1]),
			}
		}
		if err := b.feedMatch(tag, text, closeTag); err != nil {
			return err
		}
	}
	return nil
}

func (b *TreeBuilder) feedMatch(tag, text, closeTag string) error {
	if strings.HasPrefix(tag, "/") {
		if text != "" {
			c := b.count(tag[1:])
			return &TagSoupError{
				Tag:    tag[1:],
				Opens:  c.opens,
				Closes: c.closes,
				Reason: fmt.Sprintf("text %q after closing tag", text),
			}
		}
		return b.end(tag[1:])
	}
	if closeTag != "" && closeTag != tag {
		// The regex consumed a close tag belonging to some other element.
		// Open (and, for a leaf, force-close) the current tag first, then
		// process the stray end tag; the mismatch surfaces there.
		if err := b.start(tag, text, ""); err != nil {
			return err
		}
		return b.end(closeTag)
	}
	return b.start(tag, text, closeTag)
}

// start pushes a new element.
//
//   - If there's text data, it's a leaf: write the data and close it, whether
//     or not an explicit end tag was present.
//   - If there's no text, it's an aggregate; if the same match also captured
//     its close tag, it's empty and closes immediately.
func (b *TreeBuilder) start(tag, text, closeTag string) error {
	node := &Node{Name: tag}
	if b.stack.IsEmpty() {
		if b.root != nil {
			c := b.count(tag)
			return &TagSoupError{
				Tag:    tag,
				Opens:  c.opens,
				Closes: c.closes,
				Reason: "content after document root was closed",
			}
		}
		b.root = node
	} else {
		parent, err := b.stack.Peek()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvariant, err)
		}
		parent.append(node)
	}
	b.stack.Push(node)
	b.count(tag).opens++
	glog.V(3).Infof("start <%s> text=%q stack=%v", tag, text, b.stack.Dump())
	if text != "" {
		node.Text = text
		return b.end(tag)
	}
	if closeTag != "" {
		return b.end(tag)
	}
	return nil
}

// end closes the currently open element, which must match the given tag.
func (b *TreeBuilder) end(tag string) error {
	c := b.count(tag)
	if b.stack.IsEmpty() {
		return &TagSoupError{
			Tag:    tag,
			Opens:  c.opens,
			Closes: c.closes,
			Reason: "end tag with no open element",
		}
	}
	node, err := b.stack.Pop()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	if node.Name != tag {
		return &TagSoupError{
			Tag:    tag,
			Opens:  c.opens,
			Closes: c.closes,
			Reason: fmt.Sprintf("end tag mismatch: open element is <%s>", node.Name),
		}
	}
	c.closes++
	glog.V(3).Infof("end </%s> stack=%v", tag, b.stack.Dump())
	return nil
}

// Close finishes the parse and returns the root of the tree.
func (b *TreeBuilder) Close() (*Node, error) {
	if !b.stack.IsEmpty() {
		names := b.stack.Dump()
		tag := names[len(names)-1]
		c := b.count(tag)
		return nil, &TagSoupError{
			Tag:    tag,
			Opens:  c.opens,
			Closes: c.closes,
			Reason: "document ended with unclosed elements",
		}
	}
	if b.root == nil {
		return nil, &TagSoupError{Reason: "document has no root element"}
	}
	return b.root, nil
}
