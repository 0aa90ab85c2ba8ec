package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	"github.com/oksasatya/vidtube-api/internal/domain/repository"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id::text, username, email, full_name, avatar_url, cover_image_url,
	password_hash, refresh_token, watch_history::text[], created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL,
		&u.Password, &u.RefreshToken, &u.WatchHistory, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, avatar_url, cover_image_url, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at, updated_at
	`, entity.NormalizeUsername(u.Username), entity.NormalizeEmail(u.Email), u.FullName, u.AvatarURL, u.CoverImageURL, u.Password)
	return mapErr(row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error) {
	username, email = entity.NormalizeUsername(username), entity.NormalizeEmail(email)
	if username == "" && email == "" {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		LIMIT 1
	`, username, email))
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	username, email = entity.NormalizeUsername(username), entity.NormalizeEmail(email)
	if username == "" && email == "" {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		)
	`, username, email).Scan(&exists)
	return exists, err
}

// UpdateFields writes only the columns set in patch.
func (r *UserRepository) UpdateFields(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	var (
		sets []string
		args = []any{id}
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Email != nil {
		add("email", entity.NormalizeEmail(*patch.Email))
	}
	if patch.FullName != nil {
		add("full_name", strings.TrimSpace(*patch.FullName))
	}
	if patch.AvatarURL != nil {
		add("avatar_url", *patch.AvatarURL)
	}
	if patch.CoverImageURL != nil {
		add("cover_image_url", *patch.CoverImageURL)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+userColumns, args...))
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) CompareAndSwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	if !validID(id) {
		return false, repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token = $3
		WHERE id = $1 AND refresh_token IS NOT NULL AND refresh_token = $2
	`, id, current, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
