// Package shoutcast is a narrow adapter over a Shoutcast DNAS server's
// HTTP admin interface. Every call is an independent authenticated
// request with a bounded timeout; the client holds no connection state
// between calls, so the coordinator can be tested against a fake and
// the real daemon can be swapped without touching lifecycle logic.
package shoutcast

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrStreamNotFound is returned when the server has no stream for the
// requested id.
var ErrStreamNotFound = errors.New("stream not found on server")

// Client talks to one Shoutcast server's admin interface
type Client struct {
	hostname      string
	adminPort     int
	adminPassword string
	httpClient    *http.Client
}

// NewClient creates a client for the given server. timeout bounds every
// admin request; a timeout is indistinguishable from any other failure.
func NewClient(hostname string, adminPort int, adminPassword string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		hostname:      hostname,
		adminPort:     adminPort,
		adminPassword: adminPassword,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Hostname returns the server hostname the client targets
func (c *Client) Hostname() string {
	return c.hostname
}

// serverStatusXML mirrors the admin viewxml document
type serverStatusXML struct {
	XMLName          xml.Name    `xml:"SHOUTCASTSERVER"`
	Version          string      `xml:"VERSION"`
	Uptime           int64       `xml:"UPTIME"`
	CurrentListeners int         `xml:"CURRENTLISTENERS"`
	PeakListeners    int         `xml:"PEAKLISTENERS"`
	MaxListeners     int         `xml:"MAXLISTENERS"`
	Streams          []streamXML `xml:"STREAMS>STREAM"`
}

type streamXML struct {
	ID               string `xml:"ID,attr"`
	ServerPort       int    `xml:"SERVERPORT"`
	CurrentListeners int    `xml:"CURRENTLISTENERS"`
	PeakListeners    int    `xml:"PEAKLISTENERS"`
	MaxListeners     int    `xml:"MAXLISTENERS"`
	ServerTitle      string `xml:"SERVERTITLE"`
	ServerGenre      string `xml:"SERVERGENRE"`
	ServerURL        string `xml:"SERVERURL"`
	StreamStatus     int    `xml:"STREAMSTATUS"`
	StreamUptime     int64  `xml:"STREAMUPTIME"`
	StreamHits       int    `xml:"STREAMHITS"`
	Bitrate          int    `xml:"BITRATE"`
	SampleRate       int    `xml:"SAMPLERATE"`
	SongTitle        string `xml:"SONGTITLE"`
}

type listenersXML struct {
	XMLName   xml.Name      `xml:"SHOUTCASTSERVER"`
	Listeners []listenerXML `xml:"LISTENERS>LISTENER"`
}

type listenerXML struct {
	UID         string `xml:"UID"`
	Hostname    string `xml:"HOSTNAME"`
	UserAgent   string `xml:"USERAGENT"`
	ConnectTime int64  `xml:"CONNECTTIME"`
}

// ServerStatus is the parsed server-wide status
type ServerStatus struct {
	Version          string
	UptimeSeconds    int64
	CurrentListeners int
	PeakListeners    int
	MaxListeners     int
	TotalStreams     int
	ActiveStreams    int
	Streams          []StreamInfo
}

// StreamInfo is the parsed per-stream status
type StreamInfo struct {
	ID               string
	Port             int
	IsLive           bool
	CurrentListeners int
	PeakListeners    int
	MaxListeners     int
	Title            string
	Genre            string
	URL              string
	Bitrate          int
	SampleRate       int
	UptimeSeconds    int64
	Hits             int
	CurrentSong      string
}

// Listener is one connected listener
type Listener struct {
	UID            string
	Host           string
	UserAgent      string
	ConnectedForMS int64
}

// StreamConfig is the mount-point configuration pushed on create
type StreamConfig struct {
	StreamID       string
	Port           int
	SourcePassword string
	AdminPassword  string
	MaxListeners   int
	Bitrate        int
	Title          string
	Genre          string
	URL            string
	Public         bool
}

func (c *Client) adminURL(params url.Values) string {
	params.Set("pass", c.adminPassword)
	return fmt.Sprintf("http://%s:%d/admin.cgi?%s", c.hostname, c.adminPort, params.Encode())
}

// request performs one authenticated admin request and returns the
// response body. Non-2xx responses and transport errors come back as
// plain errors; nothing escapes as a panic.
func (c *Client) request(ctx context.Context, method string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.adminURL(params), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build admin request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("admin request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin request returned status %d", resp.StatusCode)
	}

	return body, nil
}

// GetServerStatus retrieves server-wide status and per-stream summaries
func (c *Client) GetServerStatus(ctx context.Context) (*ServerStatus, error) {
	params := url.Values{"mode": {"viewxml"}}

	body, err := c.request(ctx, http.MethodGet, params)
	if err != nil {
		return nil, err
	}

	var doc serverStatusXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse server status: %w", err)
	}

	status := &ServerStatus{
		Version:          doc.Version,
		UptimeSeconds:    doc.Uptime,
		CurrentListeners: doc.CurrentListeners,
		PeakListeners:    doc.PeakListeners,
		MaxListeners:     doc.MaxListeners,
		TotalStreams:     len(doc.Streams),
	}

	for _, s := range doc.Streams {
		info := streamInfoFromXML(s)
		if info.IsLive {
			status.ActiveStreams++
		}
		status.Streams = append(status.Streams, info)
	}

	return status, nil
}

// GetStreamInfo retrieves live status for one stream id
func (c *Client) GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error) {
	params := url.Values{"mode": {"viewxml"}, "sid": {streamID}}

	body, err := c.request(ctx, http.MethodGet, params)
	if err != nil {
		return nil, err
	}

	var doc serverStatusXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse stream status: %w", err)
	}

	if len(doc.Streams) == 0 {
		return nil, ErrStreamNotFound
	}

	info := streamInfoFromXML(doc.Streams[0])
	return &info, nil
}

// CreateStream instructs the server to open a mount point with the
// given configuration. Safe to retry against a port that may already be
// configured: the server treats re-adding an existing mount as an
// update.
func (c *Client) CreateStream(ctx context.Context, cfg StreamConfig) error {
	params := url.Values{
		"mode":      {"addstream"},
		"sid":       {cfg.StreamID},
		"port":      {strconv.Itoa(cfg.Port)},
		"streampw":  {cfg.SourcePassword},
		"adminpw":   {cfg.AdminPassword},
		"maxusers":  {strconv.Itoa(cfg.MaxListeners)},
		"bitrate":   {strconv.Itoa(cfg.Bitrate)},
		"title":     {cfg.Title},
		"genre":     {cfg.Genre},
		"url":       {cfg.URL},
		"public":    {boolParam(cfg.Public)},
	}

	_, err := c.request(ctx, http.MethodPost, params)
	return err
}

// RemoveStream removes a mount point from the server
func (c *Client) RemoveStream(ctx context.Context, streamID string) error {
	params := url.Values{"mode": {"delstream"}, "sid": {streamID}}

	_, err := c.request(ctx, http.MethodPost, params)
	return err
}

// UpdateMetadata updates a stream's public metadata
func (c *Client) UpdateMetadata(ctx context.Context, streamID, title, genre, streamURL string) error {
	params := url.Values{"mode": {"updinfo"}, "sid": {streamID}}
	if title != "" {
		params.Set("title", title)
	}
	if genre != "" {
		params.Set("genre", genre)
	}
	if streamURL != "" {
		params.Set("url", streamURL)
	}

	_, err := c.request(ctx, http.MethodGet, params)
	return err
}

// SetSongTitle updates the currently-playing title for a stream
func (c *Client) SetSongTitle(ctx context.Context, streamID, song string) error {
	params := url.Values{"mode": {"updinfo"}, "sid": {streamID}, "song": {song}}

	_, err := c.request(ctx, http.MethodGet, params)
	return err
}

// KickSource disconnects the source encoder from a stream
func (c *Client) KickSource(ctx context.Context, streamID string) error {
	params := url.Values{"mode": {"kicksrc"}, "sid": {streamID}}

	_, err := c.request(ctx, http.MethodGet, params)
	return err
}

// KickListener disconnects one listener from a stream
func (c *Client) KickListener(ctx context.Context, streamID, listenerUID string) error {
	params := url.Values{"mode": {"kickdst"}, "sid": {streamID}, "uid": {listenerUID}}

	_, err := c.request(ctx, http.MethodGet, params)
	return err
}

// ListListeners retrieves the listeners connected to a stream
func (c *Client) ListListeners(ctx context.Context, streamID string) ([]Listener, error) {
	params := url.Values{"mode": {"viewxml"}, "sid": {streamID}, "page": {"3"}}

	body, err := c.request(ctx, http.MethodGet, params)
	if err != nil {
		return nil, err
	}

	var doc listenersXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse listener list: %w", err)
	}

	listeners := make([]Listener, 0, len(doc.Listeners))
	for _, l := range doc.Listeners {
		listeners = append(listeners, Listener{
			UID:            l.UID,
			Host:           l.Hostname,
			UserAgent:      l.UserAgent,
			ConnectedForMS: l.ConnectTime,
		})
	}

	return listeners, nil
}

// ReloadConfiguration signals the server to reload its configuration
func (c *Client) ReloadConfiguration(ctx context.Context) error {
	params := url.Values{"mode": {"reload"}}

	_, err := c.request(ctx, http.MethodGet, params)
	return err
}

func streamInfoFromXML(s streamXML) StreamInfo {
	return StreamInfo{
		ID:               s.ID,
		Port:             s.ServerPort,
		IsLive:           s.StreamStatus == 1,
		CurrentListeners: s.CurrentListeners,
		PeakListeners:    s.PeakListeners,
		MaxListeners:     s.MaxListeners,
		Title:            s.ServerTitle,
		Genre:            s.ServerGenre,
		URL:              s.ServerURL,
		Bitrate:          s.Bitrate,
		SampleRate:       s.SampleRate,
		UptimeSeconds:    s.StreamUptime,
		Hits:             s.StreamHits,
		CurrentSong:      s.SongTitle,
	}
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
