// Package treemap turns a categorized entry into the weighted tree consumed
// by a rectangle layout engine. The layout itself lives outside this module.
package treemap

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/region-atlas/internal/categorize"
)

// Node is one node of a weighted tree. Leaf values are field values; an
// inner node's value is the sum of its children.
type Node struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Children []*Node `json:"children,omitempty"`
}

// MarshalJSON writes non-finite values in their text form.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string  `json:"name"`
		Value    any     `json:"value"`
		Children []*Node `json:"children,omitempty"`
	}{n.Name, categorize.WireValue(n.Value), n.Children})
}

// UnmarshalJSON reads values written by MarshalJSON.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w struct {
		Name     string  `json:"name"`
		Value    any     `json:"value"`
		Children []*Node `json:"children"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "treemap: decode node")
	}
	v, ok := categorize.ParseWireValue(w.Value)
	if w.Value != nil && !ok {
		return eris.Errorf("treemap: node %q value %v is not a number", w.Name, w.Value)
	}
	*n = Node{Name: w.Name, Value: v, Children: w.Children}
	return nil
}

// Rect is a laid-out node.
type Rect struct {
	Node  *Node   `json:"-"`
	Depth int     `json:"depth"`
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
}

// Layout assigns rectangles to a summed, sorted tree.
type Layout interface {
	Layout(root *Node, width, height float64) []Rect
}

// Build creates the tree for an entry: the region at the root, one child
// per non-empty bucket, one leaf per field. Values are summed bottom-up and
// siblings sorted by descending value, ties broken by name.
func Build(e *categorize.Entry) *Node {
	if e == nil {
		return nil
	}

	root := &Node{Name: e.Region}
	for _, b := range e.Buckets() {
		fields := e.Categories[b]
		bucket := &Node{Name: string(b), Children: make([]*Node, 0, len(fields))}
		for name, v := range fields {
			bucket.Children = append(bucket.Children, &Node{Name: name, Value: v})
		}
		root.Children = append(root.Children, bucket)
	}

	root.sum()
	root.sort()
	return root
}

// Leaves returns the leaf nodes in depth-first order.
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}
	if len(n.Children) == 0 {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Find returns the direct child with the given name.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) sum() float64 {
	if len(n.Children) == 0 {
		return n.Value
	}
	var total float64
	for _, c := range n.Children {
		total += c.sum()
	}
	n.Value = total
	return total
}

func (n *Node) sort() {
	slices.SortStableFunc(n.Children, func(a, b *Node) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	for _, c := range n.Children {
		c.sort()
	}
}
