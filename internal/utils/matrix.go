package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var userIDRegex = regexp.MustCompile(`^@[a-zA-Z0-9._=/+-]+:[a-zA-Z0-9.-]+$`)

// based on W3C email regex, ref: https://www.w3.org/TR/2016/REC-html51-20161101/sec-forms.html#email-state-typeemail
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// IsValidEmail checks if the given address is a valid email address
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}

	return emailRegex.MatchString(email)
}

// IsValidUserID checks if the given ID is a valid matrix user ID
func IsValidUserID(userID string) bool {
	if userID == "" {
		return false
	}

	return userIDRegex.MatchString(userID)
}

// ParseUserID splits a matrix user ID into its localpart and homeserver host.
// ok is false unless the ID matches the matrix user ID grammar and splits into
// exactly two non-empty parts.
func ParseUserID(userID string) (localpart, host string, ok bool) {
	if !IsValidUserID(userID) {
		return "", "", false
	}
	idx := strings.Index(userID, ":")
	localpart = strings.TrimPrefix(userID[:idx], "@")
	host = userID[idx+1:]
	if localpart == "" || host == "" || strings.Contains(host, ":") {
		return "", "", false
	}
	return localpart, host, true
}

// ServerFrom returns server name from the matrix ID (room id/alias, user ID, etc)
func ServerFrom(matrixID string) string {
	idx := strings.LastIndex(matrixID, ":")
	if idx == -1 {
		return ""
	}
	if idx+1 == len(matrixID) { // "wrongid:"
		return ""
	}
	return matrixID[idx+1:]
}

// DisplayNameFromID derives a human-readable display name from a matrix user ID.
// The localpart convention is "firstname.lastname-domain"; everything after the
// last hyphen is dropped, dots become spaces, words are capitalized.
// For example "@jean.martin-modernisation.fr:matrix.org" yields "Jean Martin".
// Returns "" for anything that is not a valid matrix user ID - this path runs
// on untrusted directory data and must never fail.
func DisplayNameFromID(userID string) string {
	localpart, _, ok := ParseUserID(userID)
	if !ok {
		return ""
	}

	if idx := strings.LastIndex(localpart, "-"); idx != -1 {
		localpart = localpart[:idx]
	}

	return Capitalize(strings.ReplaceAll(localpart, ".", " "))
}

// HostDisplayName builds a short human label for a homeserver host by stripping
// the federation suffix and keeping the last remaining dot-component.
// For example with suffix "tchap.gouv.fr", "agent.name2.tchap.gouv.fr" yields "Name2".
// Unknown hosts degrade to a best-effort label instead of failing.
func HostDisplayName(host, suffix string) string {
	trimmed := host
	if suffix != "" {
		trimmed = strings.TrimSuffix(strings.TrimSuffix(trimmed, suffix), ".")
	}
	parts := strings.Split(trimmed, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return Capitalize(parts[i])
		}
	}
	return ""
}

// Capitalize upper-cases the first letter of every space-separated word
func Capitalize(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
