package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/vidtube-api/config"
	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	"github.com/oksasatya/vidtube-api/internal/domain/repository"
	pginfra "github.com/oksasatya/vidtube-api/internal/infrastructure/postgres"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
)

const demoPassword = "password123"

var demoUsers = []entity.User{
	{Username: "demouser", Email: "demo@vidtube.local", FullName: "Demo User"},
	{Username: "cookingwithana", Email: "ana@vidtube.local", FullName: "Ana Cooks"},
	{Username: "gophertalks", Email: "gopher@vidtube.local", FullName: "Gopher Talks"},
}

// Seeds demo accounts, subscriptions, videos and a watch history.
// Expects migrations to have been applied by the API server.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	users := pginfra.NewUserRepository(pool)
	profiles := pginfra.NewProfileRepository(pool)

	hash, err := helpers.HashPassword(demoPassword)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ids := make(map[string]string, len(demoUsers))
	for _, d := range demoUsers {
		u := d
		u.Password = hash
		u.AvatarURL = "https://api.dicebear.com/7.x/identicon/svg?seed=" + u.Username
		err := users.Create(ctx, &u)
		if errors.Is(err, repository.ErrDuplicate) {
			existing, err := users.GetByUsernameOrEmail(ctx, u.Username, u.Email)
			if err != nil {
				log.Fatalf("failed to load %s: %v", u.Username, err)
			}
			ids[u.Username] = existing.ID
			fmt.Printf("user exists: %s id=%s\n", u.Username, existing.ID)
			continue
		}
		if err != nil {
			log.Fatalf("failed to seed %s: %v", u.Username, err)
		}
		ids[u.Username] = u.ID
		fmt.Printf("seeded user: id=%s username=%s email=%s password=%s\n", u.ID, u.Username, u.Email, demoPassword)
	}

	demo := ids["demouser"]
	for _, ch := range []string{"cookingwithana", "gophertalks"} {
		if err := profiles.Subscribe(ctx, demo, ids[ch]); err != nil {
			log.Fatalf("failed to subscribe to %s: %v", ch, err)
		}
	}
	if err := profiles.Subscribe(ctx, ids["gophertalks"], ids["cookingwithana"]); err != nil {
		log.Fatalf("failed to subscribe: %v", err)
	}

	videos := []entity.Video{
		{OwnerID: ids["cookingwithana"], Title: "Perfect risotto in 20 minutes", Description: "Stir, stir, stir.", Duration: 1212},
		{OwnerID: ids["gophertalks"], Title: "Context cancellation explained", Description: "Deadlines all the way down.", Duration: 845},
	}
	var watched []string
	for _, v := range videos {
		v.VideoFile = "https://cdn.vidtube.local/videos/sample.mp4"
		v.Thumbnail = "https://cdn.vidtube.local/thumbs/sample.jpg"
		v.IsPublished = true
		id, err := profiles.AddVideo(ctx, v)
		if err != nil {
			log.Fatalf("failed to add video %q: %v", v.Title, err)
		}
		watched = append(watched, id)
	}
	if err := profiles.AppendWatchHistory(ctx, demo, watched...); err != nil {
		log.Fatalf("failed to seed watch history: %v", err)
	}
	fmt.Printf("seeded %d videos into %s's watch history\n", len(watched), "demouser")
}
