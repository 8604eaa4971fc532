package models

import "time"

// Link represents a shortened link and its associated metadata.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// ShortCode is the short code associated with the target URL.
	ShortCode string
	// TargetURL is the original, full-length URL that the short code redirects to.
	TargetURL string
	// Title is the page title captured when the link was created, if any.
	Title string
	// ClickCount tracks the number of times the link has been resolved.
	ClickCount int64
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
}

// AccessEvent is a single edge access record consumed from the analytics stream.
type AccessEvent struct {
	// Timestamp is when the edge served the request.
	Timestamp time.Time
	// ClientIP is the requesting client's address as seen by the edge.
	ClientIP string
	// StatusCode is the HTTP status the edge returned.
	StatusCode int
	// RequestPath is the raw request path, including the leading slash.
	RequestPath string
}
