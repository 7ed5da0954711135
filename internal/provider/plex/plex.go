// Package plex adapts the Plex Media Server HTTP API to provider.Provider.
package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"streamguard/internal/logger"
	"streamguard/internal/provider"
)

// Client talks to one Plex Media Server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logger.Logger
}

// New returns a Plex client. httpClient carries the per-request timeout.
func New(baseURL, token string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient, log: log.WithComponent("plex")}
}

func (c *Client) newRequest(method, path string, query url.Values) (*http.Request, error) {
	req, err := http.NewRequest(method, provider.Endpoint(c.baseURL, path, query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Product", "streamguard")
	req.Header.Set("X-Plex-Client-Identifier", "streamguard")
	return req, nil
}

// flexString accepts JSON strings and numbers; Plex reports ids as either depending on version.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexInt accepts JSON numbers and numeric strings.
type flexInt struct {
	v *int64
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int64(n)
	f.v = &v
	return nil
}

type sessionsResponse struct {
	MediaContainer struct {
		Metadata []metadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type metadata struct {
	SessionKey       flexString `json:"sessionKey"`
	Title            string     `json:"title"`
	Type             string     `json:"type"`
	ParentTitle      string     `json:"parentTitle"`
	GrandparentTitle string     `json:"grandparentTitle"`
	Year             flexInt    `json:"year"`
	Duration         flexInt    `json:"duration"`
	ViewOffset       flexInt    `json:"viewOffset"`
	User             struct {
		ID    flexString `json:"id"`
		Title string     `json:"title"`
	} `json:"User"`
	Player struct {
		Address           string `json:"address"`
		MachineIdentifier string `json:"machineIdentifier"`
		Platform          string `json:"platform"`
		Product           string `json:"product"`
		Title             string `json:"title"`
		State             string `json:"state"`
		Local             *bool  `json:"local"`
		UserAgent         string `json:"userAgent"`
	} `json:"Player"`
	Session struct {
		ID        flexString `json:"id"`
		Bandwidth flexInt    `json:"bandwidth"`
		Location  string     `json:"location"`
	} `json:"Session"`
	Media []struct {
		VideoResolution flexString `json:"videoResolution"`
		Bitrate         flexInt    `json:"bitrate"`
		Container       string     `json:"container"`
		VideoCodec      string     `json:"videoCodec"`
		AudioCodec      string     `json:"audioCodec"`
	} `json:"Media"`
}

// GetSessions lists live playback sessions from /status/sessions.
func (c *Client) GetSessions(ctx context.Context) ([]provider.Session, error) {
	req, err := c.newRequest(http.MethodGet, "/status/sessions", nil)
	if err != nil {
		return nil, err
	}
	var body sessionsResponse
	if err := provider.Do(ctx, c.http, req, "plex: list sessions", &body); err != nil {
		return nil, err
	}
	out := make([]provider.Session, 0, len(body.MediaContainer.Metadata))
	for _, m := range body.MediaContainer.Metadata {
		s, ok := normalize(m)
		if !ok {
			// Not evaluated and not recorded; an open row for it will be closed.
			c.log.Warn().
				Str("session_key", string(m.SessionKey)).
				Str("session_id", string(m.Session.ID)).
				Str("user_id", string(m.User.ID)).
				Str("device_identifier", m.Player.MachineIdentifier).
				Str("product", m.Player.Product).
				Msg("skipping session without session, user or device identity")
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// normalize maps one Plex metadata entry. The key is the Session.id terminate expects, falling back to
// sessionKey on servers that omit it.
func normalize(m metadata) (provider.Session, bool) {
	key := string(m.Session.ID)
	if key == "" {
		key = string(m.SessionKey)
	}
	if key == "" || m.User.ID == "" || m.Player.MachineIdentifier == "" {
		return provider.Session{}, false
	}
	s := provider.Session{
		SessionKey: key,
		User:       provider.User{ID: string(m.User.ID), DisplayName: m.User.Title},
		Device: provider.Device{
			Identifier: m.Player.MachineIdentifier,
			Platform:   m.Player.Platform,
			Product:    m.Player.Product,
			Title:      m.Player.Title,
			Address:    m.Player.Address,
			UserAgent:  m.Player.UserAgent,
		},
		Content: provider.Content{
			Title:            m.Title,
			Type:             m.Type,
			ParentTitle:      m.ParentTitle,
			GrandparentTitle: m.GrandparentTitle,
			Year:             m.Year.v,
			Duration:         m.Duration.v,
			ViewOffset:       m.ViewOffset.v,
		},
		Network: provider.Network{Bandwidth: m.Session.Bandwidth.v},
		State:   provider.State(strings.ToLower(m.Player.State)),
	}
	switch strings.ToLower(m.Session.Location) {
	case "lan":
		s.Network.Location = provider.LocationLAN
	case "wan":
		s.Network.Location = provider.LocationWAN
	default:
		if m.Player.Local != nil {
			s.Network.Location = provider.LocationWAN
			if *m.Player.Local {
				s.Network.Location = provider.LocationLAN
			}
		}
	}
	if len(m.Media) > 0 {
		media := m.Media[0]
		s.Media = provider.Media{
			Resolution: string(media.VideoResolution),
			Bitrate:    media.Bitrate.v,
			Container:  media.Container,
			VideoCodec: media.VideoCodec,
			AudioCodec: media.AudioCodec,
		}
	}
	return s, true
}

// TerminateSession stops the session. A 404 means it already ended and counts as success.
func (c *Client) TerminateSession(ctx context.Context, sessionKey, reason string) error {
	q := url.Values{}
	q.Set("sessionId", sessionKey)
	q.Set("reason", reason)
	req, err := c.newRequest(http.MethodGet, "/status/sessions/terminate", q)
	if err != nil {
		return err
	}
	err = provider.Do(ctx, c.http, req, "plex: terminate session", nil)
	if provider.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// GetServerIdentity returns the server machineIdentifier.
func (c *Client) GetServerIdentity(ctx context.Context) (string, error) {
	req, err := c.newRequest(http.MethodGet, "/identity", nil)
	if err != nil {
		return "", err
	}
	var body struct {
		MediaContainer struct {
			MachineIdentifier string `json:"machineIdentifier"`
		} `json:"MediaContainer"`
	}
	if err := provider.Do(ctx, c.http, req, "plex: identity", &body); err != nil {
		return "", err
	}
	return body.MediaContainer.MachineIdentifier, nil
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
	return provider.ConnectionResult{Success: true, Message: "Connected to Plex server " + id}
}
