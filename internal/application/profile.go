package application

import (
	"context"
	"errors"
	"strings"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	repo "github.com/oksasatya/vidtube-api/internal/domain/repository"
)

// GetChannelProfile returns username's channel view as seen by viewerID.
func (s *Service) GetChannelProfile(ctx context.Context, username, viewerID string) (*entity.ChannelProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, badRequest("username is missing")
	}
	p, err := s.Profiles.ChannelProfile(ctx, entity.NormalizeUsername(username), viewerID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && p == nil) {
		return nil, notFound("channel does not exist")
	}
	if err != nil {
		return nil, internal("load channel failed", err)
	}
	return p, nil
}

// GetWatchHistory returns the user's watched videos in stored order.
func (s *Service) GetWatchHistory(ctx context.Context, userID string) ([]entity.WatchHistoryItem, error) {
	items, err := s.Profiles.WatchHistory(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFound("user not found")
	}
	if err != nil {
		return nil, internal("load watch history failed", err)
	}
	if items == nil {
		items = []entity.WatchHistoryItem{}
	}
	return items, nil
}
