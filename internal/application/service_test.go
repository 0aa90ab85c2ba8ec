package application

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/vidtube-api/config"
	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	"github.com/oksasatya/vidtube-api/internal/infrastructure/memory"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
	"github.com/oksasatya/vidtube-api/pkg/mailer"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, localPath, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, localPath)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/" + folder + "/" + filepath.Base(localPath), nil
}

type fakeMail struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (f *fakeMail) PublishJSON(_ context.Context, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, body.(mailer.EmailJob))
	return nil
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	uploader *fakeUploader
	mail     *fakeMail
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	up := &fakeUploader{}
	mail := &fakeMail{}
	jwt := helpers.NewJWTManager("access", "refresh", time.Minute, time.Hour)
	svc := NewService(store, store, jwt, helpers.BcryptHasher{Cost: bcrypt.MinCost}, up, nil).
		WithMail(mail, &config.Config{AppName: "vidtube", AppURL: "https://vidtube.test"})
	return &fixture{svc: svc, store: store, uploader: up, mail: mail, dir: t.TempDir()}
}

// stage writes a fake uploaded file and returns its path.
func (f *fixture) stage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	if err := os.WriteFile(p, []byte("img"), 0o600); err != nil {
		t.Fatalf("stage %s: %v", name, err)
	}
	return p
}

func assertRemoved(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("staged file %s still present (err=%v)", p, err)
		}
	}
}

func assertKind(t *testing.T, err error, k Kind) {
	t.Helper()
	if !IsKind(err, k) {
		t.Fatalf("expected %s error, got %v", k, err)
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) *entity.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		FullName:   "Full " + username,
		Email:      email,
		Username:   username,
		Password:   password,
		AvatarPath: f.stage(t, username+"-avatar.png"),
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func TestRegisterCreatesSanitizedUser(t *testing.T) {
	f := newFixture(t)
	avatar := f.stage(t, "avatar.png")
	cover := f.stage(t, "cover.png")

	u, err := f.svc.Register(context.Background(), RegisterInput{
		FullName: "Jane Doe", Email: "Jane@X.test", Username: "JaneD", Password: "secret123",
		AvatarPath: avatar, CoverPath: cover,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "janed" || u.Email != "jane@x.test" {
		t.Fatalf("identity not normalized: %+v", u)
	}
	if u.AvatarURL == "" || u.CoverImageURL == "" {
		t.Fatalf("upload urls missing: %+v", u)
	}
	b, _ := json.Marshal(u)
	if strings.Contains(string(b), "password") || strings.Contains(string(b), "refreshToken") {
		t.Fatalf("response leaks secrets: %s", b)
	}
	if ok, _ := f.store.ExistsByUsernameOrEmail(context.Background(), "janed", ""); !ok {
		t.Fatal("user not stored")
	}
	assertRemoved(t, avatar, cover)
	if len(f.mail.jobs) != 1 || f.mail.jobs[0].Template != mailWelcome {
		t.Fatalf("expected welcome email, got %+v", f.mail.jobs)
	}
}

func TestRegisterValidationCleansUp(t *testing.T) {
	tests := []struct {
		name string
		in   func(f *fixture, t *testing.T) RegisterInput
		kind Kind
	}{
		{"missing avatar", func(f *fixture, t *testing.T) RegisterInput {
			return RegisterInput{FullName: "a", Email: "a@x.test", Username: "a", Password: "p", CoverPath: f.stage(t, "c.png")}
		}, KindBadRequest},
		{"blank field", func(f *fixture, t *testing.T) RegisterInput {
			return RegisterInput{FullName: "  ", Email: "a@x.test", Username: "a", Password: "p",
				AvatarPath: f.stage(t, "a.png"), CoverPath: f.stage(t, "c.png")}
		}, KindBadRequest},
		{"bad email", func(f *fixture, t *testing.T) RegisterInput {
			return RegisterInput{FullName: "a", Email: "nope", Username: "a", Password: "p", AvatarPath: f.stage(t, "a.png")}
		}, KindBadRequest},
		{"display name email", func(f *fixture, t *testing.T) RegisterInput {
			return RegisterInput{FullName: "a", Email: "Jane <jane@x.test>", Username: "a", Password: "p", AvatarPath: f.stage(t, "a.png")}
		}, KindBadRequest},
		{"password over 72 bytes", func(f *fixture, t *testing.T) RegisterInput {
			return RegisterInput{FullName: "a", Email: "a@x.test", Username: "a", Password: strings.Repeat("p", 73),
				AvatarPath: f.stage(t, "a.png"), CoverPath: f.stage(t, "c.png")}
		}, KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := tt.in(f, t)
			_, err := f.svc.Register(context.Background(), in)
			assertKind(t, err, tt.kind)
			assertRemoved(t, in.AvatarPath, in.CoverPath)
			if len(f.uploader.calls) != 0 {
				t.Fatal("nothing should be uploaded on validation failure")
			}
		})
	}
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jane", "jane@x.test", "secret123")

	for _, in := range []RegisterInput{
		{FullName: "x", Email: "other@x.test", Username: "JANE", Password: "p"},
		{FullName: "x", Email: "jane@x.test", Username: "other", Password: "p"},
	} {
		in.AvatarPath = f.stage(t, "dup-avatar.png")
		in.CoverPath = f.stage(t, "dup-cover.png")
		_, err := f.svc.Register(context.Background(), in)
		assertKind(t, err, KindConflict)
		assertRemoved(t, in.AvatarPath, in.CoverPath)
	}
}

func TestRegisterUploadFailure(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = errors.New("bucket down")
	avatar := f.stage(t, "a.png")
	_, err := f.svc.Register(context.Background(), RegisterInput{FullName: "a", Email: "a@x.test", Username: "a", Password: "p", AvatarPath: avatar})
	assertKind(t, err, KindBadRequest)
	assertRemoved(t, avatar)
	if ok, _ := f.store.ExistsByUsernameOrEmail(context.Background(), "a", ""); ok {
		t.Fatal("user must not be created when avatar upload fails")
	}
}

func TestLoginStoresReturnedRefreshToken(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jane", "jane@x.test", "secret123")

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "JANE@x.test", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("missing tokens")
	}
	stored, _ := f.store.GetByID(context.Background(), u.ID)
	if !stored.HasRefreshToken(res.Tokens.RefreshToken) {
		t.Fatal("stored refresh token differs from returned one")
	}
	claims, err := f.svc.JWT.ParseAccessToken(res.Tokens.AccessToken)
	if err != nil || claims.UserID != u.ID {
		t.Fatalf("access token does not identify user: %v %+v", err, claims)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jane", "jane@x.test", "secret123")

	_, err := f.svc.Login(context.Background(), LoginInput{Password: "secret123"})
	assertKind(t, err, KindBadRequest)

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "ghost", Password: "secret123"})
	assertKind(t, err, KindNotFound)

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "jane", Password: "wrong"})
	assertKind(t, err, KindUnauthorized)
}

func login(t *testing.T, f *fixture, username, password string) TokenPair {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{Username: username, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res.Tokens
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jane", "jane@x.test", "secret123")
	original := login(t, f, "jane", "secret123")

	first, err := f.svc.Refresh(context.Background(), original.RefreshToken)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if first.RefreshToken == original.RefreshToken {
		t.Fatal("refresh token did not rotate")
	}

	second, err := f.svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("second refresh with rotated token: %v", err)
	}

	// the original token has not expired but was superseded
	_, err = f.svc.Refresh(context.Background(), original.RefreshToken)
	assertKind(t, err, KindUnauthorized)
	_, err = f.svc.Refresh(context.Background(), first.RefreshToken)
	assertKind(t, err, KindUnauthorized)

	if _, err := f.svc.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("latest token must still work: %v", err)
	}
}

func TestRefreshSupersededByNewLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jane", "jane@x.test", "secret123")
	old := login(t, f, "jane", "secret123")
	login(t, f, "jane", "secret123")

	_, err := f.svc.Refresh(context.Background(), old.RefreshToken)
	assertKind(t, err, KindUnauthorized)
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jane", "jane@x.test", "secret123")
	pair := login(t, f, "jane", "secret123")

	for name, tok := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"access token": pair.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Refresh(context.Background(), tok)
			assertKind(t, err, KindUnauthorized)
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		tok, _, _ := f.svc.JWT.GenerateRefreshToken("00000000-0000-0000-0000-000000000000")
		_, err := f.svc.Refresh(context.Background(), tok)
		assertKind(t, err, KindUnauthorized)
	})

	t.Run("after logout", func(t *testing.T) {
		if err := f.svc.Logout(context.Background(), u.ID); err != nil {
			t.Fatalf("logout: %v", err)
		}
		_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
		assertKind(t, err, KindUnauthorized)
		stored, _ := f.store.GetByID(context.Background(), u.ID)
		if stored.RefreshToken != nil {
			t.Fatal("logout must clear the stored refresh token")
		}
	})
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jane", "jane@x.test", "secret123")
	pair := login(t, f, "jane", "secret123")

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		assertKind(t, err, KindUnauthorized)
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jane", "jane@x.test", "secret123")
	before, _ := f.store.GetByID(context.Background(), u.ID)

	err := f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "newsecret"})
	assertKind(t, err, KindUnauthorized)
	after, _ := f.store.GetByID(context.Background(), u.ID)
	if after.Password != before.Password {
		t.Fatal("password hash changed after failed attempt")
	}

	if err := f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "newsecret"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.svc.Login(context.Background(), LoginInput{Username: "jane", Password: "newsecret"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	_, err = f.svc.Login(context.Background(), LoginInput{Username: "jane", Password: "secret123"})
	assertKind(t, err, KindUnauthorized)

	err = f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{CurrentPassword: "newsecret"})
	assertKind(t, err, KindBadRequest)
	err = f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{CurrentPassword: "newsecret", NewPassword: strings.Repeat("x", 73)})
	assertKind(t, err, KindBadRequest)
}

func TestUpdateFields(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "jane", "jane@x.test", "secret123")
	f.register(t, "john", "john@x.test", "secret123")
	ctx := context.Background()

	got, err := f.svc.UpdateFullName(ctx, u.ID, "Jane Q")
	if err != nil || got.FullName != "Jane Q" {
		t.Fatalf("update full name: %v %+v", err, got)
	}
	_, err = f.svc.UpdateFullName(ctx, u.ID, " ")
	assertKind(t, err, KindBadRequest)

	_, err = f.svc.UpdateEmail(ctx, u.ID, "john@x.test")
	assertKind(t, err, KindConflict)
	_, err = f.svc.UpdateEmail(ctx, u.ID, "bad-email")
	assertKind(t, err, KindBadRequest)

	got, err = f.svc.UpdateEmail(ctx, u.ID, "jane.q@x.test")
	if err != nil || got.Email != "jane.q@x.test" {
		t.Fatalf("update email: %v %+v", err, got)
	}
	last := f.mail.jobs[len(f.mail.jobs)-1]
	if last.Template != mailEmailChanged || last.To != "jane@x.test" {
		t.Fatalf("expected email-changed notice to old address, got %+v", last)
	}
	if last.Data["NewEmail"] != "jane.q@x.test" || last.Data["AppName"] != "vidtube" || last.Data["Time"] == "" {
		t.Fatalf("email-changed data = %+v", last.Data)
	}

	avatar := f.stage(t, "new-avatar.png")
	got, err = f.svc.UpdateAvatar(ctx, u.ID, avatar)
	if err != nil || !strings.HasSuffix(got.AvatarURL, "new-avatar.png") {
		t.Fatalf("update avatar: %v %+v", err, got)
	}
	assertRemoved(t, avatar)

	_, err = f.svc.UpdateCover(ctx, u.ID, "")
	assertKind(t, err, KindBadRequest)

	cover := f.stage(t, "new-cover.png")
	got, err = f.svc.UpdateCover(ctx, u.ID, cover)
	if err != nil || !strings.HasSuffix(got.CoverImageURL, "new-cover.png") {
		t.Fatalf("update cover: %v %+v", err, got)
	}
	assertRemoved(t, cover)

	if got.Password == "" || got.Username != "jane" {
		t.Fatal("unrelated fields must be untouched")
	}
}

func TestChannelProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	channel := f.register(t, "creator", "creator@x.test", "pw")
	subs := []*entity.User{
		f.register(t, "s1", "s1@x.test", "pw"),
		f.register(t, "s2", "s2@x.test", "pw"),
		f.register(t, "s3", "s3@x.test", "pw"),
	}
	outsider := f.register(t, "outsider", "o@x.test", "pw")
	for _, s := range subs {
		f.store.Subscribe(s.ID, channel.ID)
	}
	f.store.Subscribe(channel.ID, outsider.ID)

	p, err := f.svc.GetChannelProfile(ctx, "CREATOR", subs[1].ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.SubscribersCount != 3 || p.ChannelsSubscribedToCount != 1 || !p.IsSubscribed {
		t.Fatalf("unexpected profile %+v", p)
	}
	p, _ = f.svc.GetChannelProfile(ctx, "creator", outsider.ID)
	if p.IsSubscribed {
		t.Fatal("outsider is not a subscriber")
	}

	_, err = f.svc.GetChannelProfile(ctx, "nobody", outsider.ID)
	assertKind(t, err, KindNotFound)
	_, err = f.svc.GetChannelProfile(ctx, " ", outsider.ID)
	assertKind(t, err, KindBadRequest)
}

func TestWatchHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := f.register(t, "viewer", "v@x.test", "pw")
	owner := f.register(t, "owner", "o@x.test", "pw")

	ids := []string{
		f.store.AddVideo(entity.Video{OwnerID: owner.ID, Title: "b"}),
		f.store.AddVideo(entity.Video{OwnerID: viewer.ID, Title: "a"}),
		f.store.AddVideo(entity.Video{OwnerID: owner.ID, Title: "c"}),
	}
	if err := f.store.AppendWatchHistory(viewer.ID, ids...); err != nil {
		t.Fatalf("append: %v", err)
	}

	items, err := f.svc.GetWatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(items) != 3 || items[0].Title != "b" || items[1].Title != "a" || items[2].Title != "c" {
		t.Fatalf("order not preserved: %+v", items)
	}
	b, _ := json.Marshal(items[0])
	var decoded map[string]any
	_ = json.Unmarshal(b, &decoded)
	if _, ok := decoded["owner"].(map[string]any); !ok {
		t.Fatalf("owner must be a single object: %s", b)
	}
	if items[0].Owner.Username != "owner" {
		t.Fatalf("owner not resolved: %+v", items[0].Owner)
	}

	empty, err := f.svc.GetWatchHistory(ctx, owner.ID)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil history, got %v %v", empty, err)
	}
	_, err = f.svc.GetWatchHistory(ctx, "missing")
	assertKind(t, err, KindNotFound)
}

func TestSearchWithoutIndex(t *testing.T) {
	f := newFixture(t)
	hits, err := f.svc.SearchUsers(context.Background(), "jane", 10)
	if err != nil || len(hits) != 0 {
		t.Fatalf("expected empty result, got %v %v", hits, err)
	}
	_, err = f.svc.SearchUsers(context.Background(), "", 10)
	assertKind(t, err, KindBadRequest)
}

type unavailableUsers struct{ *memory.Store }

func (unavailableUsers) GetByID(context.Context, string) (*entity.User, error) {
	return nil, errors.New("connection refused")
}

func TestRefreshStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.register(t, "jane", "jane@x.test", "secret123")
	res, err := f.svc.Login(context.Background(), LoginInput{Username: "jane", Password: "secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.svc.Users = unavailableUsers{f.store}
	_, err = f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	assertKind(t, err, KindInternal)
}
