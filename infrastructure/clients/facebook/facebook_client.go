package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/clients"
	"shabbat-mode/infrastructure/logger"
)

const (
	statusVisible = "visible"
	statusHidden  = "hidden"
	pageLimit     = 100
	titleRunes    = 80
	// cap pagination so a runaway cursor cannot loop forever
	maxPages = 200
)

// Graph error codes, see https://developers.facebook.com/docs/graph-api/guides/error-handling
var (
	invalidTokenCodes = map[int]bool{102: true, 190: true}
	throttleCodes     = map[int]bool{4: true, 17: true, 32: true, 341: true, 613: true}
)

type Config struct {
	GraphURL     string
	ClientID     string
	ClientSecret string
}

// Client hides and restores Page posts through the Graph API is_hidden flag.
type Client struct {
	cfg     Config
	http    *http.Client
	retrier *clients.Retrier
}

func NewFacebookClient(cfg Config, httpClient *http.Client, retrier *clients.Retrier) *Client {
	cfg.GraphURL = strings.TrimRight(cfg.GraphURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if retrier == nil {
		retrier = clients.NewRetrier(clients.DefaultRetryConfig())
	}
	return &Client{cfg: cfg, http: httpClient, retrier: retrier}
}

func (c *Client) Platform() model.Platform { return model.PlatformFacebook }

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type postsPage struct {
	Data []struct {
		ID       string `json:"id"`
		Message  string `json:"message"`
		IsHidden bool   `json:"is_hidden"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// do executes one Graph request with retries and decodes a successful body into out.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values, out interface{}) error {
	return c.retrier.Do(ctx, func() error {
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return err
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("facebook: %v: %w", err, model.ErrTransientPlatform)
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("facebook: read body: %v: %w", err, model.ErrTransientPlatform)
		}
		if resp.StatusCode >= 300 {
			return classify(resp.StatusCode, raw)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	})
}

func classify(status int, raw []byte) error {
	var ge graphError
	_ = json.Unmarshal(raw, &ge)
	msg := http.StatusText(status)
	code := 0
	if ge.Error != nil {
		msg = ge.Error.Message
		code = ge.Error.Code
	}
	switch {
	case invalidTokenCodes[code] || status == http.StatusUnauthorized:
		return fmt.Errorf("facebook: %s: %w", msg, model.ErrCredentialInvalid)
	case throttleCodes[code] || clients.IsTransientStatus(status):
		return fmt.Errorf("facebook: %s: %w", msg, model.ErrTransientPlatform)
	case status == http.StatusNotFound || (code == 100 && strings.Contains(msg, "does not exist")):
		return fmt.Errorf("facebook: %s: %w", msg, model.ErrItemNotFound)
	}
	return fmt.Errorf("facebook: status %d code %d: %s", status, code, msg)
}

func pageID(cred model.Credential) string {
	if cred.AccountID != "" {
		return cred.AccountID
	}
	return "me"
}

// ListContent pages through the Page's posts.
func (c *Client) ListContent(ctx context.Context, cred model.Credential) ([]model.ContentItem, error) {
	q := url.Values{}
	q.Set("fields", "id,message,is_hidden")
	q.Set("limit", fmt.Sprintf("%d", pageLimit))
	q.Set("access_token", cred.AccessToken)
	next := fmt.Sprintf("%s/%s/posts?%s", c.cfg.GraphURL, url.PathEscape(pageID(cred)), q.Encode())

	var items []model.ContentItem
	for i := 0; next != "" && i < maxPages; i++ {
		var page postsPage
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			visibility := statusVisible
			if p.IsHidden {
				visibility = statusHidden
			}
			items = append(items, model.ContentItem{
				PlatformItemID: p.ID,
				Platform:       model.PlatformFacebook,
				UserID:         cred.UserID,
				Title:          postTitle(p.Message),
				Visibility:     visibility,
			})
		}
		next = page.Paging.Next
	}
	return items, nil
}

// postTitle keeps the first titleRunes characters of a post message
func postTitle(message string) string {
	if utf8.RuneCountInString(message) <= titleRunes {
		return message
	}
	return string([]rune(message)[:titleRunes])
}

// SetVisibility posts is_hidden for one post. Graph treats repeated identical updates as success.
func (c *Client) SetVisibility(ctx context.Context, cred model.Credential, change model.VisibilityChange) error {
	if change.ItemID == "" {
		return fmt.Errorf("post ID is required")
	}
	hidden := change.Hidden
	if !hidden && change.RestoreStatus == statusHidden {
		hidden = true
	}
	form := url.Values{}
	form.Set("is_hidden", fmt.Sprintf("%t", hidden))
	form.Set("access_token", cred.AccessToken)
	endpoint := fmt.Sprintf("%s/%s", c.cfg.GraphURL, url.PathEscape(change.ItemID))
	return c.do(ctx, http.MethodPost, endpoint, form, nil)
}

// RefreshCredential exchanges the current token for a long-lived one.
func (c *Client) RefreshCredential(ctx context.Context, cred model.Credential) (*model.Credential, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("facebook app credentials not configured: %w", model.ErrCredentialInvalid)
	}
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("client_secret", c.cfg.ClientSecret)
	q.Set("fb_exchange_token", cred.AccessToken)
	endpoint := fmt.Sprintf("%s/oauth/access_token?%s", c.cfg.GraphURL, q.Encode())

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("facebook: token exchange returned no token: %w", model.ErrCredentialInvalid)
	}
	refreshed := cred
	refreshed.AccessToken = out.AccessToken
	refreshed.ExpiresAt = nil
	if out.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second)
		refreshed.ExpiresAt = &exp
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"user_id":  cred.UserID,
		"platform": model.PlatformFacebook,
	}).Info("Facebook token exchanged for long-lived token")
	return &refreshed, nil
}
