package recs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wrenlabs/tidepool/internal/ranking"
)

// recentPostWindowDays is the lookback for a user's recent-post count.
const recentPostWindowDays = 30

// InMemoryRepository is an in-memory implementation of
// CandidateRepository. Thread-safe via RWMutex. Follower and
// recent-post counts are derived from the stored posts and follow
// edges at read time, so candidate snapshots stay consistent with the
// graph.
type InMemoryRepository struct {
	mu      sync.RWMutex
	posts   map[string]ranking.Post
	users   map[string]ranking.User
	follows map[string]map[string]struct{} // follower -> followees
}

// NewInMemoryRepository creates a new in-memory candidate repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts:   make(map[string]ranking.Post),
		users:   make(map[string]ranking.User),
		follows: make(map[string]map[string]struct{}),
	}
}

// AddUser stores a user profile, generating an ID if absent.
// Returns the user ID.
func (r *InMemoryRepository) AddUser(user ranking.User) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users[user.ID] = user
	return user.ID
}

// AddPost stores a post snapshot, generating an ID if absent.
// Returns the post ID.
func (r *InMemoryRepository) AddPost(post ranking.Post) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	r.posts[post.ID] = post
	return post.ID
}

// SetFollow records that follower follows followee.
func (r *InMemoryRepository) SetFollow(followerID, followeeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.follows[followerID] == nil {
		r.follows[followerID] = make(map[string]struct{})
	}
	r.follows[followerID][followeeID] = struct{}{}
}

// RemoveFollow removes a follow edge if present.
func (r *InMemoryRepository) RemoveFollow(followerID, followeeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.follows[followerID], followeeID)
}

// CandidatePosts returns up to limit posts not authored by
// excludeAuthorID, ordered by created_at DESC with ID ASC tie-breaking
// for stable ordering. Author snapshots are attached from the user
// store; unknown authors stay nil so scoring applies its defaults.
func (r *InMemoryRepository) CandidatePosts(_ context.Context, excludeAuthorID string, limit int) ([]ranking.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]ranking.Post, 0, len(r.posts))
	for _, post := range r.posts {
		if post.AuthorID == excludeAuthorID {
			continue
		}
		if post.Author == nil {
			if author, ok := r.users[post.AuthorID]; ok {
				post.Author = &ranking.Author{
					ID:       author.ID,
					Role:     author.Role,
					Verified: author.Verified,
				}
			}
		}
		candidates = append(candidates, post)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.After(candidates[j].CreatedAt) {
			return true
		}
		if candidates[i].CreatedAt.Before(candidates[j].CreatedAt) {
			return false
		}
		return candidates[i].ID < candidates[j].ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// CandidateUsers returns up to limit users whose IDs are not in
// excludeIDs, ordered by created_at DESC with ID ASC tie-breaking.
// Follower counts and recent-post counts are derived from the stored
// graph in one pass rather than per-candidate lookups.
func (r *InMemoryRepository) CandidateUsers(_ context.Context, excludeIDs map[string]struct{}, limit int) ([]ranking.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	followerCounts := make(map[string]int)
	for _, followees := range r.follows {
		for followee := range followees {
			followerCounts[followee]++
		}
	}

	cutoff := time.Now().Add(-recentPostWindowDays * 24 * time.Hour)
	recentPosts := make(map[string]int)
	for _, post := range r.posts {
		if post.CreatedAt.After(cutoff) {
			recentPosts[post.AuthorID]++
		}
	}

	candidates := make([]ranking.User, 0, len(r.users))
	for _, user := range r.users {
		if _, excluded := excludeIDs[user.ID]; excluded {
			continue
		}
		user.FollowerCount = followerCounts[user.ID]
		user.RecentPostCount = recentPosts[user.ID]
		candidates = append(candidates, user)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.After(candidates[j].CreatedAt) {
			return true
		}
		if candidates[i].CreatedAt.Before(candidates[j].CreatedAt) {
			return false
		}
		return candidates[i].ID < candidates[j].ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// FollowedIDs returns a copy of the viewer's followed set.
func (r *InMemoryRepository) FollowedIDs(_ context.Context, viewerID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	followed := make(map[string]struct{}, len(r.follows[viewerID]))
	for id := range r.follows[viewerID] {
		followed[id] = struct{}{}
	}
	return followed, nil
}
