package graph

import (
	"errors"
	"fmt"
)

var (
	ErrCycle       = errors.New("edge would create a cycle")
	ErrUnknownNode = errors.New("unknown node")
	ErrUnknownEdge = errors.New("unknown edge")
	ErrDuplicate   = errors.New("duplicate id")
	ErrSelfLoop    = errors.New("self-loop")
	ErrInvalidNode = errors.New("invalid node")
)

// EdgeError reports why a proposed edge was refused.
type EdgeError struct {
	Edge Edge
	Err  error
}

func (e *EdgeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("edge %s (%s -> %s): %s", e.Edge.ID, e.Edge.From, e.Edge.To, e.Err)
}

func (e *EdgeError) Unwrap() error { return e.Err }

func edgeErr(ed Edge, err error) error {
	return &EdgeError{Edge: ed, Err: err}
}

// NodeError reports why a node edit was refused.
type NodeError struct {
	NodeID string
	Err    error
	Msg    string
}

func (e *NodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("node %s: %s", e.NodeID, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %s", e.NodeID, e.Err, e.Msg)
}

func (e *NodeError) Unwrap() error { return e.Err }

func nodeErrf(id string, kind error, format string, args ...any) error {
	return &NodeError{NodeID: id, Err: kind, Msg: fmt.Sprintf(format, args...)}
}
