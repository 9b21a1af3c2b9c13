package recs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/wrenlabs/tidepool/internal/ranking"
	"github.com/wrenlabs/tidepool/internal/tracing"
)

// PostgresRepository is a CandidateRepository backed by the relational
// data layer. It is a thin read-only adapter: candidate snapshots are
// materialized per call with engagement counts and the follow graph
// resolved in bulk, never one query per candidate.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const candidatePostsQuery = `
SELECT p.id, p.author_id, p.content, p.created_at,
       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
       u.id, u.role, u.verified
FROM posts p
LEFT JOIN users u ON u.id = p.author_id
WHERE p.author_id <> $1 AND p.deleted_at IS NULL
ORDER BY p.created_at DESC, p.id ASC
LIMIT $2`

// CandidatePosts returns up to limit posts not authored by
// excludeAuthorID, newest first. Posts whose author row is missing are
// returned with a nil author; scoring applies its defaults.
func (r *PostgresRepository) CandidatePosts(ctx context.Context, excludeAuthorID string, limit int) ([]ranking.Post, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)

	rows, err := r.db.QueryContext(ctx, candidatePostsQuery, excludeAuthorID, limit)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("query candidate posts: %w", err)
	}
	defer rows.Close()

	var posts []ranking.Post
	for rows.Next() {
		var (
			post     ranking.Post
			authorID sql.NullString
			role     sql.NullString
			verified sql.NullBool
		)
		if err := rows.Scan(
			&post.ID, &post.AuthorID, &post.Content, &post.CreatedAt,
			&post.LikeCount, &post.CommentCount,
			&authorID, &role, &verified,
		); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("scan candidate post: %w", err)
		}
		if authorID.Valid {
			post.Author = &ranking.Author{
				ID:       authorID.String,
				Role:     ranking.Role(role.String),
				Verified: verified.Bool,
			}
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		endSpan(err)
		return nil, fmt.Errorf("iterate candidate posts: %w", err)
	}

	endSpan(nil)
	return posts, nil
}

const candidateUsersQuery = `
SELECT u.id, u.role, u.verified, u.created_at,
       (SELECT COUNT(*) FROM posts p
        WHERE p.author_id = u.id
          AND p.deleted_at IS NULL
          AND p.created_at > NOW() - INTERVAL '30 days'),
       (SELECT COUNT(*) FROM follows f WHERE f.followee_id = u.id)
FROM users u
WHERE u.id <> ALL($1) AND u.deleted_at IS NULL
ORDER BY u.created_at DESC, u.id ASC
LIMIT $2`

// CandidateUsers returns up to limit users whose IDs are not in
// excludeIDs, with recent-post and follower counts resolved inline.
func (r *PostgresRepository) CandidateUsers(ctx context.Context, excludeIDs map[string]struct{}, limit int) ([]ranking.User, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)

	exclude := make([]string, 0, len(excludeIDs))
	for id := range excludeIDs {
		exclude = append(exclude, id)
	}

	rows, err := r.db.QueryContext(ctx, candidateUsersQuery, pq.Array(exclude), limit)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("query candidate users: %w", err)
	}
	defer rows.Close()

	var users []ranking.User
	for rows.Next() {
		var (
			user ranking.User
			role sql.NullString
		)
		if err := rows.Scan(
			&user.ID, &role, &user.Verified, &user.CreatedAt,
			&user.RecentPostCount, &user.FollowerCount,
		); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("scan candidate user: %w", err)
		}
		user.Role = ranking.Role(role.String)
		if user.Role == "" {
			user.Role = ranking.DefaultRole
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		endSpan(err)
		return nil, fmt.Errorf("iterate candidate users: %w", err)
	}

	endSpan(nil)
	return users, nil
}

const followedIDsQuery = `
SELECT followee_id FROM follows WHERE follower_id = $1`

// FollowedIDs returns the viewer's followed set in one bulk query.
func (r *PostgresRepository) FollowedIDs(ctx context.Context, viewerID string) (map[string]struct{}, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)

	rows, err := r.db.QueryContext(ctx, followedIDsQuery, viewerID)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("query followed ids: %w", err)
	}
	defer rows.Close()

	followed := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("scan followed id: %w", err)
		}
		followed[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		endSpan(err)
		return nil, fmt.Errorf("iterate followed ids: %w", err)
	}

	endSpan(nil)
	return followed, nil
}
