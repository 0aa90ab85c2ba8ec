package entity

import "time"

// Subscription links a subscriber to a channel. Both are users.
type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// Video is only referenced by this service, to hydrate watch history.
type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ChannelProfile is the read model for a user viewed as a channel.
type ChannelProfile struct {
	ID                        string `json:"id"`
	FullName                  string `json:"fullName"`
	Username                  string `json:"username"`
	Email                     string `json:"email"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

// UserSummary is the minimal public projection of a user, used as the
// video owner in watch history and as a search hit.
type UserSummary struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
}

// WatchHistoryItem is a watched video with its owner resolved to one object.
type WatchHistoryItem struct {
	Video
	Owner UserSummary `json:"owner"`
}
