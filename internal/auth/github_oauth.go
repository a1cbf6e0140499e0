package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	defaultGitHubAPIURL = "https://api.github.com"
	githubProviderName  = "github"
)

// ProfileSanitizer はプロフィール項目を保存前に無害化する。
type ProfileSanitizer interface {
	SanitizeName(name string) string
	SanitizeImageURL(raw string) string
}

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	APIURL   string
}

// GitHubOAuthProvider はGitHub OAuth 2.0による認証を提供する。
type GitHubOAuthProvider struct {
	config    *oauth2.Config
	apiURL    string
	sanitizer ProfileSanitizer
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig, sanitizer ProfileSanitizer) *GitHubOAuthProvider {
	endpoint := github.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	if config.APIURL == "" {
		config.APIURL = defaultGitHubAPIURL
	}
	return &GitHubOAuthProvider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		apiURL:    config.APIURL,
		sanitizer: sanitizer,
	}
}

// Name はプロバイダ名を返す。
func (p *GitHubOAuthProvider) Name() string { return githubProviderName }

// GetLoginURL はGitHub OAuthの認証URLを生成する。
func (p *GitHubOAuthProvider) GetLoginURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// githubUser はGitHubの /user レスポンスのうち利用する項目。
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// githubEmail はGitHubの /user/emails レスポンスの1件。
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// 名前が未設定の場合はloginを名前とする。
// メールアドレスが非公開の場合は検証済みのプライマリアドレスを取得する。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	// 1. 認可コードをアクセストークンに交換
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	client := p.config.Client(ctx, token)

	// 2. アクセストークンでユーザー情報を取得
	var user githubUser
	if err := p.getJSON(client, "/user", &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("invalid github user (id = 0)")
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := p.getJSON(client, "/user/emails", &emails); err != nil {
			return nil, fmt.Errorf("failed to fetch user emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	name := user.Name
	if p.sanitizer != nil {
		name = p.sanitizer.SanitizeName(name)
	}
	if name == "" {
		name = user.Login
	}
	image := user.AvatarURL
	if p.sanitizer != nil {
		image = p.sanitizer.SanitizeImageURL(image)
	}

	return &OAuthUserInfo{
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
		Name:           name,
		Image:          image,
		Provider:       githubProviderName,
		Token:          token,
	}, nil
}

func (p *GitHubOAuthProvider) getJSON(client *http.Client, path string, out any) error {
	resp, err := client.Get(p.apiURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
