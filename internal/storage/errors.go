package storage

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrQdrantUnreachable  = errors.New("qdrant server unreachable")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)

// isNotFound reports whether err is a gRPC NotFound status, which Qdrant
// returns for operations on a missing collection.
func isNotFound(err error) bool {
	return err != nil && status.Code(err) == codes.NotFound
}
