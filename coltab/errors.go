package coltab

import (
	"errors"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/codec"
)

// Common errors
var (
	ErrClosedStore     = backend.ErrClosed
	ErrAlreadyExists   = backend.ErrExists
	ErrNotFound        = backend.ErrNotFound
	ErrMaxSize         = backend.ErrMaxLen
	ErrNotATable       = errors.New("not a table")
	ErrColumnMismatch  = errors.New("column set does not match table")
	ErrLengthMismatch  = frame.ErrLengthMismatch
	ErrUnsupportedType = codec.ErrUnsupportedType
	ErrCorruptMetadata = codec.ErrCorruptMetadata
	ErrUnencodable     = codec.ErrUnencodable
	ErrValueTooWide    = codec.ErrValueTooWide
	ErrInvalidURI      = errors.New("invalid store URI")
)
