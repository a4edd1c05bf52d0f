package mlog

import "github.com/google/uuid"

// FormatID formats a job, message or attachment ID for logging.
//
// UUIDs are shortened to their first 8 hex digits. Any other ID is returned
// unchanged.
func FormatID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()[:8]
	}

	return id
}
