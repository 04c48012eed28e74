package gaf

import "errors"

var (
	// ErrFrameworkMismatch is returned when a relation does not belong to the
	// framework already established by the graph's relations.
	ErrFrameworkMismatch = errors.New("relation framework mismatch")

	// ErrInvalidRelation is returned for relation values outside every framework.
	ErrInvalidRelation = errors.New("invalid relation")

	// ErrInvalidPayload is returned when payload content does not match its type.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnknownRelation is returned when removing a relation that does not exist.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrUnknownNode is returned when a relation endpoint was never added as a node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrPayloadWrite is returned when an image payload cannot be materialized.
	ErrPayloadWrite = errors.New("payload write failure")
)
