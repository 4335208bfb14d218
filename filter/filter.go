// Package filter implements the processing chain a sink pulls buffers
// through.
//
// A chain is a linked list built bottom-up: the source is created first
// and every next node takes the previous head as its child. Process runs
// the child first and then the node's own stage, so data always flows from
// the source to the sink.
package filter

import (
	"io"
	"strings"

	"github.com/pipelined/rtio"
)

// Filter is a node of the chain.
type Filter interface {
	// Process asks the child for data and applies this node to b in place.
	// A child error is returned without applying this node.
	Process(b *rtio.Buffer) error
	// Params returns params of the stream this node produces.
	Params() rtio.Params
	// Child returns the node this one pulls from, nil for sources.
	Child() Filter
}

// Stage is the processing a node applies. Sources overwrite b and set
// b.Valid, transforms modify b.Samples() in place. A finite source signals
// the end of data with io.EOF and b.Valid == 0.
type Stage interface {
	Apply(b *rtio.Buffer) error
}

// ParamsProvider is implemented by stages that define stream params,
// typically sources.
type ParamsProvider interface {
	Params() rtio.Params
}

// StageFunc allows to use an ordinary function as a stage.
type StageFunc func(b *rtio.Buffer) error

// Apply calls fn(b).
func (fn StageFunc) Apply(b *rtio.Buffer) error {
	return fn(b)
}

// Node binds a stage to its child.
type Node struct {
	rtio.UID
	child Filter
	stage Stage
}

// New returns a node which applies stage to the output of child. Child is
// nil for sources.
func New(child Filter, stage Stage) *Node {
	return &Node{
		UID:   rtio.NewUID(),
		child: child,
		stage: stage,
	}
}

// Process implements Filter.
func (n *Node) Process(b *rtio.Buffer) error {
	if n.child != nil {
		if err := n.child.Process(b); err != nil {
			return err
		}
	}
	return n.stage.Apply(b)
}

// Params returns params of the stage if it provides them, otherwise the
// child's.
func (n *Node) Params() rtio.Params {
	if p, ok := n.stage.(ParamsProvider); ok {
		return p.Params()
	}
	if n.child != nil {
		return n.child.Params()
	}
	return rtio.DefaultParams()
}

// Child implements Filter.
func (n *Node) Child() Filter {
	return n.child
}

// Stage returns the stage of the node.
func (n *Node) Stage() Stage {
	return n.stage
}

// Ancestor walks depth child references down from f. It returns nil if
// the chain is shorter. The result is owned by the chain.
func Ancestor(f Filter, depth int) Filter {
	for i := 0; i < depth && f != nil; i++ {
		f = f.Child()
	}
	return f
}

// StageAt returns the stage of the node depth levels below f if it has
// type T.
func StageAt[T any](f Filter, depth int) (T, bool) {
	var zero T
	n, ok := Ancestor(f, depth).(*Node)
	if !ok || n == nil {
		return zero, false
	}
	s, ok := n.stage.(T)
	if !ok {
		return zero, false
	}
	return s, true
}

// closeErrors wraps errors returned by multiple stages.
type closeErrors []error

func (e closeErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Unwrap allows to match any of wrapped errors.
func (e closeErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if error is list is empty.
func (e closeErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}

// Close walks the chain from f to the source and closes every node or
// stage which implements io.Closer. All of them are closed even if some
// fail.
func Close(f Filter) error {
	var errs closeErrors
	for ; f != nil; f = f.Child() {
		var c io.Closer
		switch v := f.(type) {
		case *Node:
			c, _ = v.stage.(io.Closer)
		case io.Closer:
			c = v
		}
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ret()
}
