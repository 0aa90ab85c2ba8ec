// Package memory is an in-process implementation of the user and profile
// repositories, selected with STORE_DRIVER=memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	"github.com/oksasatya/vidtube-api/internal/domain/repository"
)

type Store struct {
	mu            sync.RWMutex
	users         map[string]*entity.User
	subscriptions []entity.Subscription
	videos        map[string]*entity.Video
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:  map[string]*entity.User{},
		videos: map[string]*entity.Video{},
		now:    time.Now,
	}
}

func clone(u *entity.User) *entity.User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	c.WatchHistory = append([]string(nil), u.WatchHistory...)
	return &c
}

func (s *Store) findLocked(username, email string) *entity.User {
	for _, u := range s.users {
		if (username != "" && u.Username == entity.NormalizeUsername(username)) ||
			(email != "" && u.Email == entity.NormalizeEmail(email)) {
			return u
		}
	}
	return nil
}

func (s *Store) Create(_ context.Context, u *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(u.Username, u.Email) != nil {
		return repository.ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = clone(u)
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) GetByUsernameOrEmail(_ context.Context, username, email string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.findLocked(username, email)
	if u == nil {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(username, email) != nil, nil
}

func (s *Store) UpdateFields(_ context.Context, id string, patch entity.UserPatch) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Email != nil {
		if other := s.findLocked("", *patch.Email); other != nil && other.ID != id {
			return nil, repository.ErrDuplicate
		}
	}
	patch.Apply(u)
	u.UpdatedAt = s.now()
	return clone(u), nil
}

func (s *Store) SetRefreshToken(_ context.Context, id string, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if token == nil {
		u.RefreshToken = nil
	} else {
		t := *token
		u.RefreshToken = &t
	}
	return nil
}

func (s *Store) CompareAndSwapRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !u.HasRefreshToken(current) {
		return false, nil
	}
	u.RefreshToken = &next
	return true, nil
}

func (s *Store) ChannelProfile(_ context.Context, username, viewerID string) (*entity.ChannelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.findLocked(username, "")
	if u == nil {
		return nil, repository.ErrNotFound
	}
	p := &entity.ChannelProfile{
		ID:            u.ID,
		FullName:      u.FullName,
		Username:      u.Username,
		Email:         u.Email,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
	}
	for _, sub := range s.subscriptions {
		if sub.ChannelID == u.ID {
			p.SubscribersCount++
			if viewerID != "" && sub.SubscriberID == viewerID {
				p.IsSubscribed = true
			}
		}
		if sub.SubscriberID == u.ID {
			p.ChannelsSubscribedToCount++
		}
	}
	return p, nil
}

func (s *Store) WatchHistory(_ context.Context, userID string) ([]entity.WatchHistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	items := make([]entity.WatchHistoryItem, 0, len(u.WatchHistory))
	for _, vid := range u.WatchHistory {
		v, ok := s.videos[vid]
		if !ok {
			continue
		}
		owner, ok := s.users[v.OwnerID]
		if !ok {
			continue
		}
		items = append(items, entity.WatchHistoryItem{
			Video: *v,
			Owner: entity.UserSummary{
				ID:        owner.ID,
				FullName:  owner.FullName,
				Username:  owner.Username,
				AvatarURL: owner.AvatarURL,
			},
		})
	}
	return items, nil
}

// Subscribe records subscriberID following channelID.
func (s *Store) Subscribe(subscriberID, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions = append(s.subscriptions, entity.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		ChannelID:    channelID,
		CreatedAt:    s.now(),
	})
}

// AddVideo stores v, assigning an id when empty.
func (s *Store) AddVideo(v entity.Video) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt, v.UpdatedAt = s.now(), s.now()
	}
	s.videos[v.ID] = &v
	return v.ID
}

// AppendWatchHistory appends video ids to the user's history.
func (s *Store) AppendWatchHistory(userID string, videoIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.WatchHistory = append(u.WatchHistory, videoIDs...)
	return nil
}

var (
	_ repository.UserRepository    = (*Store)(nil)
	_ repository.ProfileRepository = (*Store)(nil)
)
