package ranking

import "time"

// FollowsAuthor reports whether authorID is in the viewer's followed set.
func FollowsAuthor(authorID string, followed map[string]struct{}) bool {
	_, ok := followed[authorID]
	return ok
}

// AgeInHours returns the age of a timestamp relative to now, in hours.
// Timestamps in the future yield a negative age.
func AgeInHours(createdAt, now time.Time) float64 {
	return now.Sub(createdAt).Hours()
}

// WithinDays reports whether createdAt is at most the given number of
// days before now.
func WithinDays(createdAt, now time.Time, days int) bool {
	age := now.Sub(createdAt)
	return age <= time.Duration(days)*24*time.Hour
}

// AuthorRole returns the role of a post's author, defaulting to
// RoleRegular when the author record is missing or carries no role.
func AuthorRole(p Post) Role {
	if p.Author == nil || p.Author.Role == "" {
		return DefaultRole
	}
	return p.Author.Role
}

// AuthorVerified reports whether a post's author is verified, either by
// the verified flag or by holding the verified role. A missing author
// record counts as unverified.
func AuthorVerified(p Post) bool {
	if p.Author == nil {
		return false
	}
	return p.Author.Verified || p.Author.Role == RoleVerified
}
