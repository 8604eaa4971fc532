package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new link with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when an attempt is made to retrieve
	// a link using a short code that doesn't exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrInvalidCursor is returned when a pagination token can't be decoded.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)
