package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/clients"
	"shabbat-mode/infrastructure/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	pageSize       = 50
	restoreDefault = "public"
)

var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// Client hides and restores channel uploads by switching status.privacyStatus.
type Client struct {
	oauthConfig *oauth2.Config
	endpoint    string
	httpClient  *http.Client
	retrier     *clients.Retrier
}

type Option func(*Client)

// WithEndpoint points the Data API at another base URL, used by tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient sets the transport used beneath the oauth2 layer.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewYouTubeClient(oauthConfig *oauth2.Config, retrier *clients.Retrier, opts ...Option) *Client {
	c := &Client{oauthConfig: oauthConfig, retrier: retrier, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = clients.NewRetrier(clients.DefaultRetryConfig())
	}
	return c
}

func (c *Client) Platform() model.Platform { return model.PlatformYouTube }

// service builds a Data API client bound to one credential. Refresh happens explicitly
// through RefreshCredential so the new token can be written back to the vault.
func (c *Client) service(ctx context.Context, cred model.Credential) (*youtube.Service, error) {
	token := &oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return svc, nil
}

// ListContent enumerates every upload of the authenticated channel with its privacy status.
func (c *Client) ListContent(ctx context.Context, cred model.Credential) ([]model.ContentItem, error) {
	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var uploads string
	err = c.retrier.Do(ctx, func() error {
		call := svc.Channels.List([]string{"contentDetails"}).Context(ctx)
		if cred.AccountID != "" {
			call = call.Id(cred.AccountID)
		} else {
			call = call.Mine(true)
		}
		resp, err := call.Do()
		if err != nil {
			return mapError(err)
		}
		if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil || resp.Items[0].ContentDetails.RelatedPlaylists == nil {
			return fmt.Errorf("no channel found for authenticated user: %w", model.ErrCredentialInvalid)
		}
		uploads = resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
		return nil
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	pageToken := ""
	for {
		var resp *youtube.PlaylistItemListResponse
		err := c.retrier.Do(ctx, func() error {
			call := svc.PlaylistItems.List([]string{"contentDetails"}).PlaylistId(uploads).MaxResults(pageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			r, err := call.Do()
			if err != nil {
				return mapError(err)
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	items := make([]model.ContentItem, 0, len(ids))
	for start := 0; start < len(ids); start += pageSize {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		var resp *youtube.VideoListResponse
		err := c.retrier.Do(ctx, func() error {
			r, err := svc.Videos.List([]string{"snippet", "status"}).Id(batch...).Context(ctx).Do()
			if err != nil {
				return mapError(err)
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, v := range resp.Items {
			item := model.ContentItem{PlatformItemID: v.Id, Platform: model.PlatformYouTube, UserID: cred.UserID}
			if v.Snippet != nil {
				item.Title = v.Snippet.Title
			}
			if v.Status != nil {
				item.Visibility = v.Status.PrivacyStatus
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// SetVisibility switches one video to private, or back to RestoreStatus. Already in the target state is a no-op.
func (c *Client) SetVisibility(ctx context.Context, cred model.Credential, change model.VisibilityChange) error {
	if change.ItemID == "" {
		return fmt.Errorf("video ID is required")
	}
	target := model.PlatformYouTube.HiddenStatus()
	if !change.Hidden {
		target = change.RestoreStatus
		if target == "" {
			target = restoreDefault
		}
	}
	svc, err := c.service(ctx, cred)
	if err != nil {
		return err
	}
	return c.retrier.Do(ctx, func() error {
		// Fetch existing status to preserve unchanged fields such as publishAt and embeddable
		existing, err := svc.Videos.List([]string{"status"}).Id(change.ItemID).Context(ctx).Do()
		if err != nil {
			return mapError(err)
		}
		if len(existing.Items) == 0 {
			return fmt.Errorf("video %s: %w", change.ItemID, model.ErrItemNotFound)
		}
		video := existing.Items[0]
		if video.Status == nil {
			video.Status = &youtube.VideoStatus{}
		}
		if video.Status.PrivacyStatus == target {
			return nil
		}
		video.Status.PrivacyStatus = target
		if _, err := svc.Videos.Update([]string{"status"}, &youtube.Video{Id: video.Id, Status: video.Status}).Context(ctx).Do(); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// RefreshCredential exchanges the refresh token for a new access token.
func (c *Client) RefreshCredential(ctx context.Context, cred model.Credential) (*model.Credential, error) {
	if c.oauthConfig == nil || cred.RefreshToken == "" {
		return nil, fmt.Errorf("youtube token cannot be refreshed: %w", model.ErrCredentialInvalid)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && clients.IsTransientStatus(re.Response.StatusCode) {
			return nil, fmt.Errorf("failed to refresh token: %v: %w", err, model.ErrTransientPlatform)
		}
		return nil, fmt.Errorf("failed to refresh token: %v: %w", err, model.ErrCredentialInvalid)
	}
	refreshed := cred
	refreshed.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		refreshed.ExpiresAt = &exp
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"user_id":    cred.UserID,
		"platform":   model.PlatformYouTube,
		"expires_at": refreshed.ExpiresAt,
	}).Info("Token refreshed successfully")
	return &refreshed, nil
}

// mapError classifies Data API failures into the scheduler's error kinds.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("youtube: %s: %w", gerr.Message, model.ErrCredentialInvalid)
		case gerr.Code == http.StatusForbidden && hasQuotaReason(gerr):
			return fmt.Errorf("youtube: %s: %w", gerr.Message, model.ErrTransientPlatform)
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("youtube: %s: %w", gerr.Message, model.ErrItemNotFound)
		case clients.IsTransientStatus(gerr.Code):
			return fmt.Errorf("youtube: status %d: %w", gerr.Code, model.ErrTransientPlatform)
		}
		return fmt.Errorf("youtube: status %d: %s", gerr.Code, gerr.Message)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("youtube: %v: %w", err, model.ErrTransientPlatform)
	}
	return err
}

func hasQuotaReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	return false
}
