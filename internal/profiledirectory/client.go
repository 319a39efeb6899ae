// Package profiledirectory implements the Profile Directory Client: a
// read-only lookup of display metadata (name, avatar) for user IDs, owned
// by an external service. It is never consulted on the write path and
// degrades gracefully when unreachable.
package profiledirectory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 5 * time.Second

// Profile is the display metadata for one user.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// UnknownProfile is substituted for any user ID the directory could not
// resolve, so callers always get a complete decoration.
func UnknownProfile(userID string) Profile {
	return Profile{UserID: userID, DisplayName: "Unknown User"}
}

// Client resolves batches of user IDs against an external profile
// directory service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

func NewClient(baseURL string, log *logrus.Entry) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
}

// Lookup resolves display metadata for the given user IDs. On any
// transport failure, timeout, or partial response it degrades gracefully:
// every requested ID is represented in the result, falling back to
// UnknownProfile where the directory did not answer.
func (c *Client) Lookup(ctx context.Context, userIDs []string) map[string]Profile {
	result := make(map[string]Profile, len(userIDs))
	for _, id := range userIDs {
		result[id] = UnknownProfile(id)
	}
	if c.baseURL == "" || len(userIDs) == 0 {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	body, err := json.Marshal(map[string][]string{"user_ids": userIDs})
	if err != nil {
		c.log.WithError(err).Warn("profile directory: encode lookup request")
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/profiles:batchGet", bytes.NewReader(body))
	if err != nil {
		c.log.WithError(err).Warn("profile directory: build lookup request")
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("profile directory: unreachable, degrading to unknown users")
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.WithField("status", resp.StatusCode).Warn("profile directory: non-200 response")
		return result
	}

	var parsed struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.log.WithError(err).Warn("profile directory: decode lookup response")
		return result
	}

	for _, p := range parsed.Profiles {
		result[p.UserID] = p
	}
	return result
}

// Reachable reports whether the directory answers a lightweight health
// probe, for GET /api/health/detailed. An unconfigured client (no
// baseURL) is considered reachable since it has nothing to degrade.
func (c *Client) Reachable(ctx context.Context) bool {
	if c.baseURL == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
