package ingest

import "errors"

var (
	// ErrUnsupportedFile is returned for file names that are not SIUS CSV exports.
	ErrUnsupportedFile = errors.New("unsupported file")
	// ErrMalformedRow is returned when a row cannot be decoded. The whole file is rejected.
	ErrMalformedRow = errors.New("malformed row")

	errNotFinite = errors.New("not a finite number")
)
