package analytics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortly/internal/models"
)

// ErrMalformedRecord is returned when a stream record can't be parsed
// into an access event at all. It is non-fatal: the record is skipped and
// the batch continues.
var ErrMalformedRecord = errors.New("malformed access record")

// ParseAccessEvent decodes one edge log line. The edge layer emits
// tab-separated records of the form:
//
//	1739035776.180\t24.18.218.96\t302\t/k120oizru\n
func ParseAccessEvent(line string) (*models.AccessEvent, error) {
	const op = "analytics.ParseAccessEvent"

	fields := strings.Split(strings.TrimRight(line, "\n"), "\t")
	if len(fields) != 4 {
		return nil, fmt.Errorf("%s: expected 4 fields, got %d: %w", op, len(fields), ErrMalformedRecord)
	}

	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%s: bad timestamp %q: %w", op, fields[0], ErrMalformedRecord)
	}

	status, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%s: bad status code %q: %w", op, fields[2], ErrMalformedRecord)
	}

	sec, frac := math.Modf(seconds)

	return &models.AccessEvent{
		Timestamp:   time.Unix(int64(sec), int64(frac*float64(time.Second))),
		ClientIP:    fields[1],
		StatusCode:  status,
		RequestPath: strings.TrimSpace(fields[3]),
	}, nil
}

// CodeFromPath extracts the short code from a request path. It returns ""
// for paths that can't possibly carry one (nested paths, empty paths).
func CodeFromPath(path string) string {
	code := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if code == "" || strings.Contains(code, "/") {
		return ""
	}

	return code
}
