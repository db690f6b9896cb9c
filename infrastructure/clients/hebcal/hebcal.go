// Package hebcal fetches weekly candle-lighting and havdalah times from the Hebcal Shabbat API.
package hebcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shabbat-mode/domain/model"
	"shabbat-mode/infrastructure/clients"
	"shabbat-mode/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const zipPrefix = "zip:"

type Config struct {
	BaseURL         string
	CandleMinutes   int
	HavdalahMinutes int
	Timeout         time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	retrier *clients.Retrier
}

func NewClient(cfg Config, retrier *clients.Retrier) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if retrier == nil {
		retrier = clients.NewRetrier(clients.DefaultRetryConfig())
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, retrier: retrier}
}

type shabbatQuery struct {
	Cfg             string `url:"cfg"`
	GeonameID       string `url:"geonameid,omitempty"`
	Zip             string `url:"zip,omitempty"`
	Year            int    `url:"gy"`
	Month           int    `url:"gm"`
	Day             int    `url:"gd"`
	CandleMinutes   int    `url:"b,omitempty"`
	HavdalahMinutes int    `url:"m,omitempty"`
	Tzeit           string `url:"M,omitempty"`
}

type shabbatResponse struct {
	Location struct {
		Tzid string `json:"tzid"`
	} `json:"location"`
	Items []struct {
		Title    string `json:"title"`
		Date     string `json:"date"`
		Category string `json:"category"`
	} `json:"items"`
}

func (c *Client) buildQuery(locationID string, week time.Time) (string, error) {
	q := shabbatQuery{
		Cfg:           "json",
		Year:          week.Year(),
		Month:         int(week.Month()),
		Day:           week.Day(),
		CandleMinutes: c.cfg.CandleMinutes,
	}
	if strings.HasPrefix(locationID, zipPrefix) {
		q.Zip = strings.TrimPrefix(locationID, zipPrefix)
	} else {
		q.GeonameID = locationID
	}
	if c.cfg.HavdalahMinutes > 0 {
		q.HavdalahMinutes = c.cfg.HavdalahMinutes
	} else {
		q.Tzeit = "on"
	}
	v, err := query.Values(q)
	if err != nil {
		return "", err
	}
	return v.Encode(), nil
}

// ShabbatTimes returns candle lighting and havdalah for the Shabbat following the given date.
// locationID is a GeoNames id, or "zip:<code>" for US zip codes.
func (c *Client) ShabbatTimes(ctx context.Context, locationID string, week time.Time) (*model.ShabbatTimes, error) {
	if locationID == "" {
		return nil, fmt.Errorf("hebcal: empty location id")
	}
	qs, err := c.buildQuery(locationID, week)
	if err != nil {
		return nil, fmt.Errorf("hebcal: build query: %w", err)
	}
	url := c.cfg.BaseURL + "/shabbat?" + qs

	var payload shabbatResponse
	err = c.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("hebcal: %v: %w", err, model.ErrTransientPlatform)
		}
		defer resp.Body.Close()
		if clients.IsTransientStatus(resp.StatusCode) {
			return fmt.Errorf("hebcal: status %d: %w", resp.StatusCode, model.ErrTransientPlatform)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("hebcal: status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&payload)
	})
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"location_id": locationID,
			"week":        week.Format("2006-01-02"),
			"error":       err,
		}).Error("Hebcal lookup failed")
		return nil, err
	}
	return parseShabbatTimes(locationID, &payload)
}

func parseShabbatTimes(locationID string, payload *shabbatResponse) (*model.ShabbatTimes, error) {
	out := &model.ShabbatTimes{LocationID: locationID, Timezone: payload.Location.Tzid}
	for _, item := range payload.Items {
		switch item.Category {
		case "candles":
			if !out.CandleLighting.IsZero() {
				continue
			}
			t, err := time.Parse(time.RFC3339, item.Date)
			if err != nil {
				return nil, fmt.Errorf("hebcal: parse candle lighting %q: %w", item.Date, err)
			}
			out.CandleLighting = t
		case "havdalah":
			t, err := time.Parse(time.RFC3339, item.Date)
			if err != nil {
				return nil, fmt.Errorf("hebcal: parse havdalah %q: %w", item.Date, err)
			}
			// Two-day holidays list several havdalah items; the first one after candle lighting wins
			if out.Havdalah.IsZero() || (t.Before(out.Havdalah) && t.After(out.CandleLighting)) {
				out.Havdalah = t
			}
		}
	}
	if out.CandleLighting.IsZero() || out.Havdalah.IsZero() {
		return nil, fmt.Errorf("hebcal: response for %s is missing candle lighting or havdalah", locationID)
	}
	if !out.Havdalah.After(out.CandleLighting) {
		return nil, fmt.Errorf("hebcal: havdalah %s precedes candle lighting %s", out.Havdalah, out.CandleLighting)
	}
	if out.Timezone != "" {
		if loc, err := time.LoadLocation(out.Timezone); err == nil {
			out.CandleLighting = out.CandleLighting.In(loc)
			out.Havdalah = out.Havdalah.In(loc)
		}
	}
	return out, nil
}
