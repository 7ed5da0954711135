// Package jellyfin adapts the Jellyfin server HTTP API to provider.Provider.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"streamguard/internal/logger"
	"streamguard/internal/provider"
)

// ticksPerMillisecond converts Jellyfin's 100ns ticks.
const ticksPerMillisecond = 10_000

// messageTimeoutMs is how long the stop message stays on screen.
const messageTimeoutMs = 10_000

// Client talks to one Jellyfin server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logger.Logger
}

// New returns a Jellyfin client. httpClient carries the per-request timeout.
func New(baseURL, token string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient, log: log.WithComponent("jellyfin")}
}

func (c *Client) newRequest(method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, provider.Endpoint(c.baseURL, path, nil), r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf(`MediaBrowser Token="%s"`, c.token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

type mediaStream struct {
	Type    string `json:"Type"`
	Codec   string `json:"Codec"`
	Height  *int64 `json:"Height"`
	BitRate *int64 `json:"BitRate"`
}

type sessionInfo struct {
	ID             string `json:"Id"`
	UserID         string `json:"UserId"`
	UserName       string `json:"UserName"`
	Client         string `json:"Client"`
	DeviceName     string `json:"DeviceName"`
	DeviceID       string `json:"DeviceId"`
	RemoteEndPoint string `json:"RemoteEndPoint"`
	NowPlayingItem *struct {
		Name           string        `json:"Name"`
		Type           string        `json:"Type"`
		SeriesName     string        `json:"SeriesName"`
		SeasonName     string        `json:"SeasonName"`
		ProductionYear *int64        `json:"ProductionYear"`
		RunTimeTicks   *int64        `json:"RunTimeTicks"`
		Container      string        `json:"Container"`
		MediaStreams   []mediaStream `json:"MediaStreams"`
	} `json:"NowPlayingItem"`
	PlayState struct {
		PositionTicks *int64 `json:"PositionTicks"`
		IsPaused      bool   `json:"IsPaused"`
	} `json:"PlayState"`
	TranscodingInfo *struct {
		Bitrate *int64 `json:"Bitrate"`
	} `json:"TranscodingInfo"`
}

// GetSessions lists sessions from /Sessions that are currently playing something.
func (c *Client) GetSessions(ctx context.Context) ([]provider.Session, error) {
	req, err := c.newRequest(http.MethodGet, "/Sessions", nil)
	if err != nil {
		return nil, err
	}
	var body []sessionInfo
	if err := provider.Do(ctx, c.http, req, "jellyfin: list sessions", &body); err != nil {
		return nil, err
	}
	out := make([]provider.Session, 0, len(body))
	for _, s := range body {
		if s.NowPlayingItem == nil {
			continue
		}
		ns, ok := normalize(s)
		if !ok {
			// Not evaluated and not recorded; an open row for it will be closed.
			c.log.Warn().
				Str("session_key", s.ID).
				Str("user_id", s.UserID).
				Str("device_identifier", s.DeviceID).
				Str("product", s.Client).
				Msg("skipping playing session without session, user or device identity")
			continue
		}
		out = append(out, ns)
	}
	return out, nil
}

func toMillis(ticks *int64) *int64 {
	if ticks == nil {
		return nil
	}
	ms := *ticks / ticksPerMillisecond
	return &ms
}

// hostOnly strips a port from RemoteEndPoint, which may be "ip", "ip:port" or "[v6]:port".
func hostOnly(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "[") {
		if i := strings.Index(endpoint, "]"); i > 0 {
			return endpoint[1:i]
		}
	}
	if strings.Count(endpoint, ":") == 1 {
		return endpoint[:strings.Index(endpoint, ":")]
	}
	return endpoint
}

func normalize(s sessionInfo) (provider.Session, bool) {
	item := s.NowPlayingItem
	if item == nil || s.ID == "" || s.UserID == "" || s.DeviceID == "" {
		return provider.Session{}, false
	}
	ns := provider.Session{
		SessionKey: s.ID,
		User:       provider.User{ID: s.UserID, DisplayName: s.UserName},
		Device: provider.Device{
			Identifier: s.DeviceID,
			Product:    s.Client,
			Title:      s.DeviceName,
			Address:    hostOnly(s.RemoteEndPoint),
		},
		Content: provider.Content{
			Title:      item.Name,
			Type:       strings.ToLower(item.Type),
			Year:       item.ProductionYear,
			Duration:   toMillis(item.RunTimeTicks),
			ViewOffset: toMillis(s.PlayState.PositionTicks),
		},
		Media: provider.Media{Container: item.Container},
		State: provider.StatePlaying,
	}
	if item.SeriesName != "" {
		ns.Content.GrandparentTitle = item.SeriesName
		ns.Content.ParentTitle = item.SeasonName
	}
	if s.PlayState.IsPaused {
		ns.State = provider.StatePaused
	}
	for _, ms := range item.MediaStreams {
		switch ms.Type {
		case "Video":
			if ns.Media.VideoCodec == "" {
				ns.Media.VideoCodec = ms.Codec
				ns.Media.Bitrate = ms.BitRate
				if ms.Height != nil {
					ns.Media.Resolution = fmt.Sprintf("%dp", *ms.Height)
				}
			}
		case "Audio":
			if ns.Media.AudioCodec == "" {
				ns.Media.AudioCodec = ms.Codec
			}
		}
	}
	if s.TranscodingInfo != nil && s.TranscodingInfo.Bitrate != nil {
		ns.Network.Bandwidth = s.TranscodingInfo.Bitrate
	}
	return ns, true
}

// TerminateSession shows reason on the client (best effort) and then stops playback. A 404 on stop
// means the session already ended and counts as success.
func (c *Client) TerminateSession(ctx context.Context, sessionKey, reason string) error {
	id := url.PathEscape(sessionKey)
	if msgReq, err := c.newRequest(http.MethodPost, "/Sessions/"+id+"/Message", map[string]any{
		"Header":    "Playback stopped",
		"Text":      reason,
		"TimeoutMs": messageTimeoutMs,
	}); err == nil {
		_ = provider.Do(ctx, c.http, msgReq, "jellyfin: send message", nil)
	}

	req, err := c.newRequest(http.MethodPost, "/Sessions/"+id+"/Playing/Stop", nil)
	if err != nil {
		return err
	}
	err = provider.Do(ctx, c.http, req, "jellyfin: stop session", nil)
	if provider.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// GetServerIdentity returns the server Id from /System/Info/Public.
func (c *Client) GetServerIdentity(ctx context.Context) (string, error) {
	req, err := c.newRequest(http.MethodGet, "/System/Info/Public", nil)
	if err != nil {
		return "", err
	}
	var body struct {
		ID         string `json:"Id"`
		ServerName string `json:"ServerName"`
	}
	if err := provider.Do(ctx, c.http, req, "jellyfin: identity", &body); err != nil {
		return "", err
	}
	return body.ID, nil
}

// TestConnection checks that the server is reachable and accepts the token.
func (c *Client) TestConnection(ctx context.Context) provider.ConnectionResult {
	if _, err := c.GetSessions(ctx); err != nil {
		return provider.ConnectionFailure(err)
	}
	id, err := c.GetServerIdentity(ctx)
	if err != nil {
		return provider.ConnectionFailure(err)
	}
	return provider.ConnectionResult{Success: true, Message: "Connected to Jellyfin server " + id}
}
