package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	idTimeLayout   = "20060102T150405"
	nameTimeLayout = "2006-01-02 15:04:05"
	idSeparator    = "_session-"
)

// NewID returns a fresh session identifier of the form
// 20251018T120000_session-0123456789ab. The timestamp keeps ids readable and
// roughly sortable; the random suffix makes collisions practically impossible.
func NewID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return time.Now().Format(idTimeLayout) + idSeparator + suffix
}

// DisplayName derives a listing name from an identifier: the creation time
// when the id carries one, otherwise its first eight characters.
func DisplayName(id string) string {
	if prefix, _, ok := strings.Cut(id, idSeparator); ok {
		if ts, err := time.ParseInLocation(idTimeLayout, prefix, time.Local); err == nil {
			return ts.Format(nameTimeLayout)
		}
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
