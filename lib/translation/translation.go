// Package translation wraps gotext lookups for user-facing strings.
// Missing catalogs fall through to the message id, so an unconfigured
// locale still produces readable English replies.
package translation

import "github.com/leonelquinteros/gotext"

// Translate resolves msgID in the configured locale, applying
// Sprintf-style vars when given.
func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
