// Package tree implements an event-labelled rooted tree and its NHX
// (New Hampshire eXtended) text representation.
package tree

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Event is the evolutionary event attached to a node. The zero value
// means no event; parsing treats an absent event tag the same way.
type Event int

const (
	EventNone Event = iota
	EventDuplication
	EventLoss
	EventSpeciation
)

func (e Event) String() string {
	switch e {
	case EventDuplication:
		return "duplication"
	case EventLoss:
		return "loss"
	case EventSpeciation:
		return "speciation"
	}
	return "none"
}

// EventFromString returns an event constant for its NHX tag value.
func EventFromString(s string) (Event, error) {
	switch s {
	case "duplication":
		return EventDuplication, nil
	case "loss":
		return EventLoss, nil
	case "speciation":
		return EventSpeciation, nil
	case "none":
		return EventNone, nil
	}
	return EventNone, fmt.Errorf("unknown event %q", s)
}

// ParseError is returned for NHX text which cannot be decoded.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return "nhx: " + e.Message
}

func parseErrorf(format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// Tree is a rooted tree with cached node access.
type Tree struct {
	*Node
	nNodes int
	nodes  []*Node
}

// ClearCache clears the cached node list, e.g. after tree modification.
func (tree *Tree) ClearCache() {
	tree.nNodes = 0
	tree.nodes = nil
}

// NNodes returns the total number of nodes.
func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

// Nodes returns all nodes indexed by id.
func (tree *Tree) Nodes() []*Node {
	if tree.nodes == nil {
		tree.nodes = make([]*Node, tree.NNodes())
		for node := range tree.Walker(nil) {
			tree.nodes[node.Id] = node
		}
	}
	return tree.nodes
}

// Terminals returns a channel with all the leaf nodes.
func (tree *Tree) Terminals() <-chan *Node {
	return tree.Walker(func(n *Node) bool {
		return n.IsTerminal()
	})
}

// NLeaves returns the number of leaves.
func (tree *Tree) NLeaves() (i int) {
	for range tree.Terminals() {
		i++
	}
	return
}

// Walker returns a channel of nodes matching the filter, in prefix order.
func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// Copy creates an independent copy of the tree.
func (tree *Tree) Copy() (newTree *Tree) {
	nNodes := tree.NNodes()
	newTree = &Tree{
		nNodes: nNodes,
		nodes:  make([]*Node, nNodes),
	}

	for i, node := range tree.Nodes() {
		if i != node.Id {
			panic("node id mismatch")
		}
		newTree.nodes[i] = node.Copy()
	}

	// Rewire node/parent connections.
	for i, node := range tree.Nodes() {
		newNode := newTree.nodes[i]
		for _, child := range node.childNodes {
			newNode.AddChild(newTree.nodes[child.Id])
		}
	}

	newTree.Node = newTree.nodes[0]
	return
}

// String returns the NHX representation of the tree.
func (tree *Tree) String() string {
	var b strings.Builder
	tree.Node.encode(&b, true)
	b.WriteByte(';')
	return b.String()
}

// Node is a single node of an event tree.
type Node struct {
	Name         string
	BranchLength float64
	Event        Event
	Parent       *Node
	childNodes   []*Node
	Id           int
}

// NewNode creates a new node with a given parent.
func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

// Copy creates a copy of the node with empty parent and children.
func (node *Node) Copy() *Node {
	return &Node{
		Name:         node.Name,
		BranchLength: node.BranchLength,
		Event:        node.Event,
		childNodes:   make([]*Node, 0, len(node.childNodes)),
		Id:           node.Id,
	}
}

// AddChild appends a child node.
func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

// ChildNodes returns the child nodes.
func (node *Node) ChildNodes() []*Node {
	return node.childNodes
}

// Walk traverses the subtree in prefix order, sending matching nodes to ch.
func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

// NSubNodes returns the size of the subtree, including the node itself.
func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

// IsRoot returns true if the node has no parent.
func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

// IsTerminal returns true if the node has no children.
func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}

// String returns the NHX representation of the subtree.
func (node *Node) String() string {
	var b strings.Builder
	node.encode(&b, node.IsRoot())
	if node.IsRoot() {
		b.WriteByte(';')
	}
	return b.String()
}

// encode writes the subtree in NHX format. The root's event tag is
// always written, even for EventNone, to keep encoding round-trip
// stable; other nodes carry the tag only when an event is set.
func (node *Node) encode(b *strings.Builder, root bool) {
	if !node.IsTerminal() {
		b.WriteByte('(')
		for i, child := range node.childNodes {
			if i > 0 {
				b.WriteByte(',')
			}
			child.encode(b, false)
		}
		b.WriteByte(')')
	}
	if node.Name != "" {
		b.WriteString(escapeIdent(node.Name))
	}
	if node.BranchLength != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(node.BranchLength, 'g', -1, 64))
	}
	if root || node.Event != EventNone {
		b.WriteString("[&&NHX:event=")
		b.WriteString(node.Event.String())
		b.WriteByte(']')
	}
}

// LongString returns a verbose one-line description of the node.
func (node *Node) LongString() (s string) {
	s = "<"
	if node.Parent == nil {
		s += "root, "
	}
	if node.Name != "" {
		s += "name=" + node.Name + ", "
	}
	s += fmt.Sprintf("Id=%v, BranchLength=%v", node.Id, node.BranchLength)
	if node.Event != EventNone {
		s += ", event=" + node.Event.String()
	}
	s += ">"
	return
}

// FullString returns an indented multiline dump of the subtree.
func (node *Node) FullString() string {
	return strings.TrimSpace(node.prefixString(""))
}

func (node *Node) prefixString(prefix string) (s string) {
	s = prefix + node.LongString() + "\n"
	for _, node := range node.childNodes {
		s += node.prefixString(prefix + "    ")
	}
	return
}

// reserved characters which terminate an unquoted identifier
func isSpecial(c rune) bool {
	switch c {
	case '(', ')', '[', ']', ',', ':', ';', '=':
		return true
	}
	return false
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, "()[],:;= \t\r\n\"")
}

// escapeIdent quotes an identifier when it contains reserved
// characters; embedded double quotes are doubled.
func escapeIdent(s string) string {
	if !needsQuoting(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range s {
		if c == '"' {
			b.WriteString(`""`)
		} else {
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// NHXSplit is a bufio.SplitFunc producing NHX tokens: single reserved
// characters, quoted identifiers (returned with their quotes) and
// unquoted identifiers.
func NHXSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces; return 1-char tokens for reserved characters.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if isSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if r == '"' {
			return scanQuoted(data, start, atEOF)
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Scan until space or reserved character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || isSpecial(r) || r == '"' {
			return i, data[start:i], nil
		}
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return 0, nil, nil
}

// scanQuoted scans a quoted identifier starting at data[start]. A
// closing quote is escaped by doubling.
func scanQuoted(data []byte, start int, atEOF bool) (int, []byte, error) {
	i := start + 1
	for i < len(data) {
		if data[i] != '"' {
			i++
			continue
		}
		if i+1 < len(data) && data[i+1] == '"' {
			i += 2
			continue
		}
		if i+1 == len(data) && !atEOF {
			// Cannot tell yet whether this quote is doubled.
			return 0, nil, nil
		}
		return i + 1, data[start : i+1], nil
	}
	if atEOF {
		return 0, nil, &ParseError{Message: "unterminated quoted identifier"}
	}
	return 0, nil, nil
}

// unquoteIdent reverses escapeIdent for tokens produced by NHXSplit.
func unquoteIdent(s string) string {
	if len(s) < 2 || s[0] != '"' {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}

type parseMode int

const (
	modeNormal parseMode = iota
	modeLength
	modeTagOpen
	modeTagBody
	modeTagKey
	modeTagValue
	modeComment
)

// ParseNHX parses a single NHX tree. Only the node name, branch length
// and the event tag are retained; other tags are dropped.
func ParseNHX(rd io.Reader) (tree *Tree, err error) {
	scanner := bufio.NewScanner(rd)
	scanner.Split(NHXSplit)

	nodeId := 0
	node := NewNode(nil, nodeId)
	tree = &Tree{Node: node}
	nodeId++

	mode := modeNormal
	named := false
	tagKey := ""

	for scanner.Scan() {
		text := scanner.Text()
		switch mode {
		case modeLength:
			l, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, parseErrorf("bad branch length %q", text)
			}
			node.BranchLength = l
			mode = modeNormal
			continue
		case modeTagOpen:
			if text != "&&NHX" {
				// Square brackets without the NHX marker enclose a comment.
				mode = modeComment
				continue
			}
			mode = modeTagBody
			continue
		case modeTagBody:
			switch text {
			case ":":
				mode = modeTagKey
			case "]":
				mode = modeNormal
			default:
				return nil, parseErrorf("unexpected %q in tag list", text)
			}
			continue
		case modeTagKey:
			if isSpecialToken(text) {
				return nil, parseErrorf("unexpected %q in tag list", text)
			}
			tagKey = unquoteIdent(text)
			mode = modeTagValue
			continue
		case modeTagValue:
			if text == "=" {
				continue
			}
			if isSpecialToken(text) {
				return nil, parseErrorf("unexpected %q in tag list", text)
			}
			if tagKey == "event" {
				ev, err := EventFromString(unquoteIdent(text))
				if err != nil {
					return nil, parseErrorf("bad event tag %q", text)
				}
				node.Event = ev
			}
			mode = modeTagBody
			continue
		case modeComment:
			if text == "]" {
				mode = modeNormal
			}
			continue
		}

		switch text {
		case "(":
			subNode := NewNode(nil, nodeId)
			nodeId++
			node.AddChild(subNode)
			node = subNode
			named = false

		case ",":
			if node.Parent == nil {
				return nil, parseErrorf("top level comma mismatch")
			}
			subNode := NewNode(nil, nodeId)
			nodeId++
			node.Parent.AddChild(subNode)
			node = subNode
			named = false

		case ")":
			if node.Parent == nil {
				return nil, parseErrorf("brackets mismatch")
			}
			node = node.Parent
			named = false

		case ":":
			mode = modeLength

		case "[":
			mode = modeTagOpen

		case ";":
			if node.Parent != nil {
				return nil, parseErrorf("brackets mismatch")
			}
			return tree, nil

		case "]", "=":
			return nil, parseErrorf("unexpected %q", text)

		default:
			if named {
				return nil, parseErrorf("unexpected identifier %q", text)
			}
			node.Name = unquoteIdent(text)
			named = true
		}
	}
	if err := scanner.Err(); err != nil {
		if perr, ok := err.(*ParseError); ok {
			return nil, perr
		}
		return nil, err
	}

	return nil, parseErrorf("unexpected end of input")
}

func isSpecialToken(s string) bool {
	if len(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return isSpecial(r)
}
