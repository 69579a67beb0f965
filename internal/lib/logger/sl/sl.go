// Package sl provides slog attribute helpers.
package sl

import "log/slog"

// Err returns an "error" attribute for err.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
