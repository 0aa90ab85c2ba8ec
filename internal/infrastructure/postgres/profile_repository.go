package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	"github.com/oksasatya/vidtube-api/internal/domain/repository"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// ChannelProfile counts subscribers and subscriptions in one round trip.
func (r *ProfileRepository) ChannelProfile(ctx context.Context, username, viewerID string) (*entity.ChannelProfile, error) {
	p := &entity.ChannelProfile{}
	err := r.pool.QueryRow(ctx, `
		SELECT u.id::text, u.full_name, u.username, u.email, u.avatar_url, u.cover_image_url,
		       (SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id),
		       (SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
		       EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id::text = $2)
		FROM users u
		WHERE u.username = $1
	`, entity.NormalizeUsername(username), viewerID).Scan(
		&p.ID, &p.FullName, &p.Username, &p.Email, &p.AvatarURL, &p.CoverImageURL,
		&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// WatchHistory resolves the stored video ids in order. Ids whose video or
// owner no longer exists are skipped.
func (r *ProfileRepository) WatchHistory(ctx context.Context, userID string) ([]entity.WatchHistoryItem, error) {
	if !validID(userID) {
		return nil, repository.ErrNotFound
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, `
		SELECT v.id::text, v.title, v.description, v.video_file, v.thumbnail, v.duration, v.views,
		       v.is_published, v.created_at, v.updated_at,
		       o.id::text, o.full_name, o.username, o.avatar_url
		FROM users u
		CROSS JOIN LATERAL unnest(u.watch_history) WITH ORDINALITY AS h(video_id, pos)
		JOIN videos v ON v.id = h.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE u.id = $1
		ORDER BY h.pos
	`, userID)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.WatchHistoryItem, error) {
		var it entity.WatchHistoryItem
		err := row.Scan(&it.ID, &it.Title, &it.Description, &it.VideoFile, &it.Thumbnail, &it.Duration, &it.Views,
			&it.IsPublished, &it.CreatedAt, &it.UpdatedAt,
			&it.Owner.ID, &it.Owner.FullName, &it.Owner.Username, &it.Owner.AvatarURL)
		it.OwnerID = it.Owner.ID
		return it, err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Subscribe records subscriberID following channelID. Repeats are ignored.
func (r *ProfileRepository) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (subscriber_id, channel_id) VALUES ($1, $2)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING
	`, subscriberID, channelID)
	return err
}

// AddVideo inserts v and returns its id.
func (r *ProfileRepository) AddVideo(ctx context.Context, v entity.Video) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO videos (owner_id, title, description, video_file, thumbnail, duration, views, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text
	`, v.OwnerID, v.Title, v.Description, v.VideoFile, v.Thumbnail, v.Duration, v.Views, v.IsPublished).Scan(&id)
	return id, err
}

// AppendWatchHistory appends video ids to the user's history.
func (r *ProfileRepository) AppendWatchHistory(ctx context.Context, userID string, videoIDs ...string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET watch_history = watch_history || $2::uuid[] WHERE id = $1
	`, userID, videoIDs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
