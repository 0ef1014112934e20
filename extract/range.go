package extract

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Range is one contiguous piece of user selection.
type Range interface {
	// CloneContents returns detached copies of nodes covered by the range.
	CloneContents() ([]*html.Node, error)
	// String returns plain text of the range.
	String() string
}

// NodeRange selects a single element with everything it contains.
type NodeRange struct {
	Node *html.Node
}

func (r NodeRange) CloneContents() ([]*html.Node, error) {
	if r.Node == nil {
		return nil, errors.New("range has no node")
	}
	return []*html.Node{cloneNode(r.Node)}, nil
}

func (r NodeRange) String() string {
	return textContent(r.Node)
}

// FragmentRange is a selection delivered as serialized markup, text may be
// supplied separately when caller has it (browser selection toString()).
type FragmentRange struct {
	HTML string
	Text string
}

var fragmentContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

func (r FragmentRange) CloneContents() ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(r.HTML), fragmentContext)
	if err != nil {
		return nil, fmt.Errorf("unable to parse selection markup: %w", err)
	}
	return nodes, nil
}

func (r FragmentRange) String() string {
	if r.Text != "" {
		return r.Text
	}
	nodes, err := r.CloneContents()
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(textContent(n))
	}
	return b.String()
}
