package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/notionauth/internal/gateway"
	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
	"github.com/hitoshi/notionauth/internal/notion/notiontest"
)

const (
	usersDB    = "11111111-1111-1111-1111-111111111111"
	accountsDB = "22222222-2222-2222-2222-222222222222"
	sessionsDB = "33333333-3333-3333-3333-333333333333"
	tokensDB   = "44444444-4444-4444-4444-444444444444"
)

var testCollections = Collections{
	Users:              usersDB,
	Accounts:           accountsDB,
	Sessions:           sessionsDB,
	VerificationTokens: tokensDB,
}

type fixture struct {
	srv     *notiontest.Server
	adapter *Adapter
	logs    *bytes.Buffer
}

type fixtureConfig struct {
	limit    int
	interval time.Duration
	store    func(*notion.Client) Store
	opts     []Option
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	return newFixtureWith(t, fixtureConfig{opts: opts})
}

func newFixtureWith(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	if cfg.limit == 0 {
		cfg.limit = 1000
		cfg.interval = time.Second
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	srv := notiontest.NewServer(t, usersDB, accountsDB, sessionsDB, tokensDB)
	srv.Relate(accountsDB, mapper.AccountUserID, usersDB, mapper.UserAccounts)
	srv.Relate(sessionsDB, mapper.SessionUserID, usersDB, mapper.UserSessions)

	limiter, err := gateway.NewWindowLimiter(cfg.limit, cfg.interval)
	require.NoError(t, err)
	gw := gateway.New(limiter, logger)

	var store Store = srv.Client(logger)
	if cfg.store != nil {
		store = cfg.store(srv.Client(logger))
	}

	opts := append([]Option{WithLogger(logger)}, cfg.opts...)
	return &fixture{
		srv:     srv,
		adapter: New(store, gw, testCollections, opts...),
		logs:    &logs,
	}
}

func (f *fixture) createUser(t *testing.T, name, email string) *model.User {
	t.Helper()
	u, err := f.adapter.CreateUser(context.Background(), model.User{Name: name, Email: email})
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

// --- User ---

func TestCreateUser_ThenGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.adapter.CreateUser(ctx, model.User{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		Image: "https://avatars.example.com/u/1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Ada Lovelace", created.Name)

	got := f.adapter.GetUser(ctx, created.ID)
	require.NotNil(t, got)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "https://avatars.example.com/u/1", got.Image)
	assert.Nil(t, got.EmailVerified)

	// ハイフンなしのIDでも同じページを取得できる
	got = f.adapter.GetUser(ctx, notion.NormalizeID(created.ID))
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)

	byEmail := f.adapter.GetUserByEmail(ctx, "ada@example.com")
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestGetUser_NotFoundIsNil(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Nil(t, f.adapter.GetUser(ctx, "00000000-0000-0000-0000-000000000000"))
	assert.Nil(t, f.adapter.GetUserByEmail(ctx, "nobody@example.com"))
}

func TestGetUserByEmail_ExactMatchOnly(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "Ada", "ada@example.com")

	assert.Nil(t, f.adapter.GetUserByEmail(context.Background(), "da@example.com"))
}

func TestCreateUser_FailureReturnsError(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext(1, http.StatusInternalServerError)

	u, err := f.adapter.CreateUser(context.Background(), model.User{Name: "Ada", Email: "ada@example.com"})

	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrCreateUser)
	assert.Contains(t, f.logs.String(), `"operation":"users.create"`)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createUser(t, "Ada", "ada@example.com")

	verified := time.UnixMilli(1700000000000)
	updated, err := f.adapter.UpdateUser(ctx, model.User{
		ID:            created.ID,
		Name:          "Ada King",
		Email:         "ada@example.com",
		EmailVerified: &verified,
		VerifiedEmail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada King", updated.Name)
	require.NotNil(t, updated.EmailVerified)
	assert.True(t, verified.Equal(*updated.EmailVerified))
}

func TestUpdateUser_MissingReturnsError(t *testing.T) {
	f := newFixture(t)

	u, err := f.adapter.UpdateUser(context.Background(), model.User{ID: "missing", Name: "x", Email: "x@example.com"})

	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrUpdateUser)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createUser(t, "Ada", "ada@example.com")

	deleted := f.adapter.DeleteUser(ctx, created.ID)
	require.NotNil(t, deleted)
	assert.Equal(t, "Ada", deleted.Name)

	page, ok := f.srv.Page(created.ID)
	require.True(t, ok)
	assert.True(t, page.Archived, "論理削除のみでページは残る")

	assert.Nil(t, f.adapter.GetUser(ctx, created.ID))
	assert.Nil(t, f.adapter.GetUserByEmail(ctx, "ada@example.com"))
}

func TestDeleteUser_MissingIsNil(t *testing.T) {
	f := newFixture(t)

	assert.NotPanics(t, func() {
		assert.Nil(t, f.adapter.DeleteUser(context.Background(), "missing"))
	})
}

// ストアがアーカイブ済みページを返しても、アダプタ側で除外する。
func TestQueries_ExcludeArchivedExplicitly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createUser(t, "Ada", "ada@example.com")
	require.NotNil(t, f.adapter.DeleteUser(ctx, created.ID))

	f.srv.IncludeArchivedInQueries(true)

	assert.Nil(t, f.adapter.GetUserByEmail(ctx, "ada@example.com"))
	assert.Nil(t, f.adapter.GetUser(ctx, created.ID))

	token := f.adapter.CreateVerificationToken(ctx, model.VerificationToken{
		Identifier: "ada@example.com", Token: "t1", Expires: time.Now().Add(time.Hour),
	})
	require.NotNil(t, token)
	require.NotNil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", "t1"))
	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", "t1"))
}

// 一致するページの前に100件超のアーカイブ済みページがあっても、カーソルをたどって見つける。
func TestQueryFirst_FollowsCursorPastArchivedPages(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping paging test in short mode")
	}
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < queryPageSize+1; i++ {
		stale := f.createUser(t, fmt.Sprintf("Ada %d", i), "ada@example.com")
		require.NotNil(t, f.adapter.DeleteUser(ctx, stale.ID))
	}
	live := f.createUser(t, "Ada", "ada@example.com")
	f.srv.IncludeArchivedInQueries(true)

	got := f.adapter.GetUserByEmail(ctx, "ada@example.com")
	require.NotNil(t, got)
	assert.Equal(t, live.ID, got.ID)
}

// 空のキーは検索せず、既存のレコードにも一致しない。
func TestEmptyKeys_NeverMatchAnyRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")
	require.NotNil(t, f.adapter.LinkAccount(ctx, model.Account{
		UserID: user.ID, Type: "oauth", Provider: "github", ProviderAccountID: "12345",
	}))
	require.NotNil(t, f.adapter.CreateSession(ctx, model.Session{
		UserID: user.ID, SessionToken: "secret-token", Expires: time.Now().Add(time.Hour),
	}))
	require.NotNil(t, f.adapter.CreateVerificationToken(ctx, model.VerificationToken{
		Identifier: "ada@example.com", Token: "abc", Expires: time.Now().Add(time.Hour),
	}))
	before := len(f.srv.Requests())

	assert.Nil(t, f.adapter.GetSessionAndUser(ctx, ""))
	assert.Nil(t, f.adapter.UpdateSession(ctx, model.SessionUpdate{SessionToken: ""}))
	f.adapter.DeleteSession(ctx, "")
	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "", ""))
	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", ""))
	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "", "abc"))
	assert.Nil(t, f.adapter.GetUserByEmail(ctx, ""))
	assert.Nil(t, f.adapter.GetUserByAccount(ctx, "github", ""))
	assert.Nil(t, f.adapter.GetUserByAccount(ctx, "", "12345"))
	f.adapter.UnlinkAccount(ctx, "", "")
	assert.Empty(t, f.adapter.ListAccounts(ctx, ""))

	assert.Len(t, f.srv.Requests(), before, "空のキーではNotionを呼び出さない")

	require.NotNil(t, f.adapter.GetSessionAndUser(ctx, "secret-token"))
	require.NotNil(t, f.adapter.GetUserByAccount(ctx, "github", "12345"))
	require.NotNil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", "abc"))
}

// --- Account ---

func TestLinkAccount_ThenGetUserByAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")

	expires := int64(1700003600)
	account := f.adapter.LinkAccount(ctx, model.Account{
		UserID:            user.ID,
		Type:              model.ProviderTypeOAuth,
		Provider:          "github",
		ProviderAccountID: "12345",
		AccessToken:       "gho_abc",
		ExpiresAt:         &expires,
		Scope:             "read:user",
	})
	require.NotNil(t, account)
	assert.Equal(t, "github", account.Provider)
	assert.Equal(t, notion.NormalizeID(user.ID), notion.NormalizeID(account.UserID))

	got := f.adapter.GetUserByAccount(ctx, "github", "12345")
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
}

func TestGetUserByAccount_NoAccount(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "Ada", "ada@example.com")

	assert.Nil(t, f.adapter.GetUserByAccount(context.Background(), "github", "12345"))
}

func TestGetUserByAccount_AccountWithoutUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// リレーション先のユーザーが存在しないアカウント
	account := f.adapter.LinkAccount(ctx, model.Account{
		UserID:            "99999999-9999-9999-9999-999999999999",
		Provider:          "github",
		ProviderAccountID: "12345",
	})
	require.NotNil(t, account)

	assert.Nil(t, f.adapter.GetUserByAccount(ctx, "github", "12345"))
}

func TestGetUserByAccount_ProviderMustMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")
	require.NotNil(t, f.adapter.LinkAccount(ctx, model.Account{UserID: user.ID, Provider: "github", ProviderAccountID: "12345"}))

	assert.Nil(t, f.adapter.GetUserByAccount(ctx, "gitlab", "12345"))
	assert.Nil(t, f.adapter.GetUserByAccount(ctx, "github", "1234"))
}

func TestUnlinkAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")
	require.NotNil(t, f.adapter.LinkAccount(ctx, model.Account{UserID: user.ID, Provider: "github", ProviderAccountID: "12345"}))

	f.adapter.UnlinkAccount(ctx, "github", "12345")

	assert.Nil(t, f.adapter.GetUserByAccount(ctx, "github", "12345"))
	pages := f.srv.Pages(accountsDB)
	require.Len(t, pages, 1)
	assert.True(t, pages[0].Archived)
}

func TestListAccounts_ReturnsOnlyLiveAccountsOfUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.createUser(t, "Ada", "ada@example.com")
	bob := f.createUser(t, "Bob", "bob@example.com")
	require.NotNil(t, f.adapter.LinkAccount(ctx, model.Account{UserID: ada.ID, Provider: "github", ProviderAccountID: "1"}))
	require.NotNil(t, f.adapter.LinkAccount(ctx, model.Account{UserID: ada.ID, Provider: "gitlab", ProviderAccountID: "2"}))
	require.NotNil(t, f.adapter.LinkAccount(ctx, model.Account{UserID: bob.ID, Provider: "github", ProviderAccountID: "3"}))
	f.adapter.UnlinkAccount(ctx, "gitlab", "2")

	accounts := f.adapter.ListAccounts(ctx, ada.ID)
	require.Len(t, accounts, 1)
	assert.Equal(t, "github", accounts[0].Provider)
	assert.Equal(t, "1", accounts[0].ProviderAccountID)

	assert.Empty(t, f.adapter.ListAccounts(ctx, "99999999-9999-9999-9999-999999999999"))
}

func TestUnlinkAccount_MissingIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")
	require.NotNil(t, f.adapter.LinkAccount(ctx, model.Account{UserID: user.ID, Provider: "github", ProviderAccountID: "12345"}))

	assert.NotPanics(t, func() {
		f.adapter.UnlinkAccount(ctx, "github", "99999")
		f.adapter.UnlinkAccount(ctx, "gitlab", "12345")
	})

	assert.NotNil(t, f.adapter.GetUserByAccount(ctx, "github", "12345"))
}

// --- Session ---

func TestSession_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")
	expires := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())

	session := f.adapter.CreateSession(ctx, model.Session{UserID: user.ID, SessionToken: "sess-1", Expires: expires})
	require.NotNil(t, session)
	assert.Equal(t, "sess-1", session.SessionToken)
	assert.True(t, expires.Equal(session.Expires))

	both := f.adapter.GetSessionAndUser(ctx, "sess-1")
	require.NotNil(t, both)
	assert.Equal(t, session.ID, both.Session.ID)
	assert.Equal(t, user.ID, both.User.ID)
	assert.Equal(t, "Ada", both.User.Name)

	f.adapter.DeleteSession(ctx, "sess-1")
	assert.Nil(t, f.adapter.GetSessionAndUser(ctx, "sess-1"))
}

func TestGetSessionAndUser_Missing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Nil(t, f.adapter.GetSessionAndUser(ctx, "nope"))

	// ユーザーとリレーションされていないセッション
	require.NotNil(t, f.adapter.CreateSession(ctx, model.Session{
		UserID: "99999999-9999-9999-9999-999999999999", SessionToken: "orphan", Expires: time.Now().Add(time.Hour),
	}))
	assert.Nil(t, f.adapter.GetSessionAndUser(ctx, "orphan"))
}

func TestUpdateSession_TokenOnlyKeepsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")
	original := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
	require.NotNil(t, f.adapter.CreateSession(ctx, model.Session{UserID: user.ID, SessionToken: "sess-1", Expires: original}))

	extended := original.Add(24 * time.Hour)
	updated := f.adapter.UpdateSession(ctx, model.SessionUpdate{SessionToken: "sess-1", Expires: &extended})

	require.NotNil(t, updated)
	assert.Equal(t, "sess-1", updated.SessionToken)
	assert.True(t, original.Equal(updated.Expires), "既定モードではexpiresを変更しない")
}

func TestUpdateSession_ExtendExpiry(t *testing.T) {
	f := newFixture(t, WithSessionUpdateMode(mapper.SessionUpdateExtendExpiry))
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")
	original := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
	require.NotNil(t, f.adapter.CreateSession(ctx, model.Session{UserID: user.ID, SessionToken: "sess-1", Expires: original}))

	extended := original.Add(24 * time.Hour)
	updated := f.adapter.UpdateSession(ctx, model.SessionUpdate{SessionToken: "sess-1", Expires: &extended})

	require.NotNil(t, updated)
	assert.True(t, extended.Equal(updated.Expires))
}

func TestUpdateSession_MissingIsNil(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.adapter.UpdateSession(context.Background(), model.SessionUpdate{SessionToken: "nope"}))
}

func TestDeleteSession_MissingIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NotPanics(t, func() {
		f.adapter.DeleteSession(context.Background(), "nope")
	})
	assert.Empty(t, f.srv.Pages(sessionsDB))
}

// --- VerificationToken ---

func TestUseVerificationToken_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expires := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())

	created := f.adapter.CreateVerificationToken(ctx, model.VerificationToken{
		Identifier: "ada@example.com", Token: "abc", Expires: expires,
	})
	require.NotNil(t, created)

	first := f.adapter.UseVerificationToken(ctx, "ada@example.com", "abc")
	require.NotNil(t, first)
	assert.Equal(t, "ada@example.com", first.Identifier)
	assert.Equal(t, "abc", first.Token)
	assert.True(t, expires.Equal(first.Expires))

	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", "abc"))
}

func TestUseVerificationToken_RequiresBothFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NotNil(t, f.adapter.CreateVerificationToken(ctx, model.VerificationToken{
		Identifier: "ada@example.com", Token: "abc", Expires: time.Now().Add(time.Hour),
	}))

	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", "abd"))
	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "grace@example.com", "abc"))
	assert.NotNil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", "abc"))
}

func TestCreateVerificationToken_FailureIsNil(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext(1, http.StatusServiceUnavailable)

	got := f.adapter.CreateVerificationToken(context.Background(), model.VerificationToken{
		Identifier: "ada@example.com", Token: "abc", Expires: time.Now(),
	})
	assert.Nil(t, got)
}

// failingArchiveStore はアーカイブ要求だけを失敗させる。
type failingArchiveStore struct {
	*notion.Client
}

func (s failingArchiveStore) UpdatePage(ctx context.Context, pageID string, req notion.UpdatePageRequest) (*notion.Page, error) {
	if req.Archived != nil {
		return nil, errors.New("archive rejected")
	}
	return s.Client.UpdatePage(ctx, pageID, req)
}

func TestUseVerificationToken_ArchiveFailureIsNil(t *testing.T) {
	f := newFixtureWith(t, fixtureConfig{
		store: func(c *notion.Client) Store { return failingArchiveStore{c} },
	})
	ctx := context.Background()
	require.NotNil(t, f.adapter.CreateVerificationToken(ctx, model.VerificationToken{
		Identifier: "ada@example.com", Token: "abc", Expires: time.Now().Add(time.Hour),
	}))

	assert.Nil(t, f.adapter.UseVerificationToken(ctx, "ada@example.com", "abc"))
}

// --- メンテナンス ---

func TestPurgeExpired(t *testing.T) {
	now := time.Now()
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "Ada", "ada@example.com")

	require.NotNil(t, f.adapter.CreateSession(ctx, model.Session{UserID: user.ID, SessionToken: "old", Expires: now.Add(-time.Hour)}))
	require.NotNil(t, f.adapter.CreateSession(ctx, model.Session{UserID: user.ID, SessionToken: "live", Expires: now.Add(time.Hour)}))
	require.NotNil(t, f.adapter.CreateVerificationToken(ctx, model.VerificationToken{Identifier: "a", Token: "old", Expires: now.Add(-time.Minute)}))
	require.NotNil(t, f.adapter.CreateVerificationToken(ctx, model.VerificationToken{Identifier: "a", Token: "live", Expires: now.Add(time.Minute)}))

	sessions, tokens := f.adapter.PurgeExpired(ctx, now)

	assert.Equal(t, 1, sessions)
	assert.Equal(t, 1, tokens)
	assert.Nil(t, f.adapter.GetSessionAndUser(ctx, "old"))
	assert.NotNil(t, f.adapter.GetSessionAndUser(ctx, "live"))
	assert.NotNil(t, f.adapter.UseVerificationToken(ctx, "a", "live"))

	sessions, tokens = f.adapter.PurgeExpired(ctx, now)
	assert.Zero(t, sessions)
	assert.Zero(t, tokens)
}

func TestPurgeExpired_FollowsCursor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping paging test in short mode")
	}
	now := time.Now()
	f := newFixture(t)
	ctx := context.Background()

	const n = queryPageSize + 5
	for i := 0; i < n; i++ {
		require.NotNil(t, f.adapter.CreateVerificationToken(ctx, model.VerificationToken{
			Identifier: "a", Token: fmt.Sprintf("t%d", i), Expires: now.Add(-time.Minute),
		}))
	}

	_, tokens := f.adapter.PurgeExpired(ctx, now)
	assert.Equal(t, n, tokens)
}

func TestCheckCollections(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.adapter.CheckCollections(context.Background()))

	cols := testCollections
	cols.Sessions = "55555555-5555-5555-5555-555555555555"
	cols.VerificationTokens = ""
	a := New(f.srv.Client(nil), f.adapter.gw, cols)

	err := a.CheckCollections(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions")
	assert.Contains(t, err.Error(), "verification_tokens")
	assert.NotContains(t, err.Error(), "users")
}

// --- レート制限 ---

// 並行した操作でも、ストアに届くリクエストは任意のウィンドウ内で上限以下になる。
func TestAdapter_OutboundCallsAreRateLimited(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}
	const (
		limit     = 3
		interval  = 150 * time.Millisecond
		tolerance = 30 * time.Millisecond
	)
	f := newFixtureWith(t, fixtureConfig{limit: limit, interval: interval})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.adapter.GetUserByEmail(ctx, "ada@example.com")
		}()
	}
	wg.Wait()

	reqs := f.srv.Requests()
	require.Len(t, reqs, 9)
	times := make([]time.Time, len(reqs))
	for i, r := range reqs {
		times[i] = r.At
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i := 0; i+limit < len(times); i++ {
		assert.GreaterOrEqual(t, times[i+limit].Sub(times[i]), interval-tolerance)
	}
}
