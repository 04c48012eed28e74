package view

import "errors"

var (
	// ErrUnknownNode is returned when a query or interaction names a node
	// that is not in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidNode is returned when a conversation focus names a node
	// that is not in the graph.
	ErrInvalidNode = errors.New("invalid node")

	// ErrNoPrimaryAvailable is returned when a conversation has no primary
	// node and the graph has no conclusion to default to.
	ErrNoPrimaryAvailable = errors.New("no primary node available")

	// ErrInvalidDirection is returned for interaction directions other than
	// "from" and "to".
	ErrInvalidDirection = errors.New("invalid interaction direction")
)
