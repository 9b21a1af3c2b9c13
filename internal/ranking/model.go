package ranking

import "time"

// Role identifies the privilege level of an account.
type Role string

// Valid role constants.
const (
	RoleRegular  Role = "regular"
	RoleVerified Role = "verified"
	RoleAdmin    Role = "admin"
)

// DefaultRole is assumed when a candidate carries no author record.
const DefaultRole = RoleRegular

// Author is the snapshot of a post's author used for scoring.
type Author struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
}

// Post is an immutable candidate snapshot for one ranking call.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	Content      string    `json:"content"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`

	// Author may be nil for orphaned posts; scoring falls back to
	// role=regular, verified=false.
	Author *Author `json:"author,omitempty"`
}

// User is an immutable candidate snapshot for one ranking call.
type User struct {
	ID              string    `json:"id"`
	Role            Role      `json:"role"`
	Verified        bool      `json:"verified"`
	RecentPostCount int       `json:"recentPostCount"`
	FollowerCount   int       `json:"followerCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Viewer carries the identity and follow-graph membership of the user
// a feed is being ranked for.
type Viewer struct {
	ID       string
	Followed map[string]struct{}
}

// Follows reports whether the viewer follows the given user.
func (v Viewer) Follows(userID string) bool {
	_, ok := v.Followed[userID]
	return ok
}

// PostBreakdown records the per-signal contributions to a post score.
// Field names are part of the API response contract.
type PostBreakdown struct {
	Following  float64 `json:"following"`
	Popularity float64 `json:"popularity"`
	Recency    float64 `json:"recency"`
	RoleBonus  float64 `json:"roleBonus"`
	Total      float64 `json:"total"`
}

// UserBreakdown records the per-signal contributions to a user score.
type UserBreakdown struct {
	Base       float64 `json:"base"`
	RoleBonus  float64 `json:"roleBonus"`
	Activity   float64 `json:"activity"`
	Popularity float64 `json:"popularity"`
	Newcomer   float64 `json:"newcomer"`
	Random     float64 `json:"random"`
	Total      float64 `json:"total"`
}
