package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
)

const (
	// DefaultTwitchAddr is the TLS endpoint of Twitch chat.
	DefaultTwitchAddr = "irc.chat.twitch.tv:6697"

	// DefaultTwitchValidateURL resolves the login that owns an access token.
	DefaultTwitchValidateURL = "https://id.twitch.tv/oauth2/validate"

	// maxTwitchMessageLength is the longest PRIVMSG body Twitch accepts.
	maxTwitchMessageLength = 500

	// Twitch chat allows 20 messages per 30 seconds for a regular account.
	twitchMessagesPerWindow = 20
	twitchMessageWindow     = 30 * time.Second

	twitchMinReconnectDelay = 2 * time.Second
	twitchMaxReconnectDelay = time.Minute

	twitchDisconnectPoll = 50 * time.Millisecond
)

var (
	// ErrTwitchNotConnected is returned by sends while no chat session is up.
	ErrTwitchNotConnected = errors.New("twitch: not connected")

	// ErrTwitchNotJoined is returned when the target channel has not confirmed the JOIN.
	ErrTwitchNotJoined = errors.New("twitch: channel not joined")

	// ErrTwitchAuthFailed means Twitch rejected the access token. It ends Run.
	ErrTwitchAuthFailed = errors.New("twitch: login authentication failed")
)

// TwitchConfig contains configuration for Twitch chat notifications.
type TwitchConfig struct {
	// Enabled indicates whether Twitch chat notifications are enabled
	Enabled bool

	// Addr is the chat server address (default DefaultTwitchAddr)
	Addr string

	// PlainText connects without TLS. Only meant for local chat servers.
	PlainText bool

	// AccessToken is the user access token, without the "oauth:" prefix
	AccessToken string

	// Nick is the bot login. When empty it is resolved from ValidateURL.
	Nick string

	// Channels are the channel names to announce in, without the leading '#'
	Channels []string

	// ValidateURL is the token validation endpoint (default DefaultTwitchValidateURL)
	ValidateURL string

	// Timeout bounds the nick lookup and the wait for a session to close
	Timeout time.Duration
}

// TwitchNotifier keeps a go-twitch-irc session open and says announcements
// through it. Run owns the session; NotifyText and SendToChannel may be
// called concurrently from other goroutines.
type TwitchNotifier struct {
	config      TwitchConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	logger      *slog.Logger

	minReconnectDelay time.Duration

	mu     sync.Mutex
	client *twitchirc.Client // nil until the server welcomes the session
	joined map[string]bool

	ready     chan []string
	readyOnce sync.Once
}

// NewTwitchNotifier creates a TwitchNotifier. Call Run to connect.
func NewTwitchNotifier(config TwitchConfig) *TwitchNotifier {
	if config.Addr == "" {
		config.Addr = DefaultTwitchAddr
	}
	if config.ValidateURL == "" {
		config.ValidateURL = DefaultTwitchValidateURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	channels := make([]string, 0, len(config.Channels))
	for _, ch := range config.Channels {
		channels = append(channels, normalizeChannel(ch))
	}
	config.Channels = channels

	return &TwitchNotifier{
		config:            config,
		httpClient:        &http.Client{Timeout: config.Timeout},
		rateLimiter:       NewWindowRateLimiter(twitchMessagesPerWindow, twitchMessageWindow),
		logger:            slog.Default(),
		minReconnectDelay: twitchMinReconnectDelay,
		ready:             make(chan []string, 1),
	}
}

// Channels returns the configured channel names.
func (t *TwitchNotifier) Channels() []string {
	return append([]string(nil), t.config.Channels...)
}

// Ready receives the joined channels once every configured JOIN is confirmed.
// It fires once per notifier, on the first session only.
func (t *TwitchNotifier) Ready() <-chan []string {
	return t.ready
}

// Run connects, joins the configured channels and serves the session until ctx
// is done. Sessions that drop are re-established with exponential backoff.
//
// Returns:
//   - nil when ctx is canceled
//   - ErrTwitchAuthFailed when Twitch rejects the token
//   - an error when the bot nick cannot be resolved
func (t *TwitchNotifier) Run(ctx context.Context) error {
	nick := strings.ToLower(t.config.Nick)
	if nick == "" {
		resolved, err := t.resolveNick(ctx)
		if err != nil {
			return fmt.Errorf("resolve twitch nick: %w", err)
		}
		nick = resolved
		t.logger.Info("Resolved Twitch bot nick", slog.String("nick", nick))
	}

	delay := t.minReconnectDelay
	for {
		joinedAny, err := t.session(ctx, nick)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrTwitchAuthFailed) {
			return err
		}
		if joinedAny {
			delay = t.minReconnectDelay
		}

		t.logger.Warn("Twitch chat session ended, reconnecting",
			slog.Any("error", err),
			slog.Duration("delay", delay))

		if err := sleepCtx(ctx, delay); err != nil {
			return nil
		}
		delay = min(delay*2, twitchMaxReconnectDelay)
	}
}

// session runs one client from Connect until it returns. It reports whether
// any channel was joined so Run can reset its backoff.
func (t *TwitchNotifier) session(ctx context.Context, nick string) (bool, error) {
	client := twitchirc.NewClient(nick, "oauth:"+t.config.AccessToken)
	client.IrcAddress = t.config.Addr
	client.TLS = !t.config.PlainText

	var joinedAny atomic.Bool

	// OnConnect fires again after a server requested reconnect, which drops
	// every JOIN.
	client.OnConnect(func() {
		t.mu.Lock()
		t.client = client
		t.joined = make(map[string]bool, len(t.config.Channels))
		t.mu.Unlock()
		t.logger.Info("Connected to Twitch chat", slog.String("nick", nick))
	})
	client.OnSelfJoinMessage(func(m twitchirc.UserJoinMessage) {
		joinedAny.Store(true)
		channel := normalizeChannel(m.Channel)
		t.markJoined(channel)
		t.logger.Info("Joined Twitch channel", slog.String("channel", channel))
	})
	client.OnSelfPartMessage(func(m twitchirc.UserPartMessage) {
		channel := normalizeChannel(m.Channel)
		t.mu.Lock()
		delete(t.joined, channel)
		t.mu.Unlock()
		t.logger.Warn("Left Twitch channel", slog.String("channel", channel))
	})
	client.OnNoticeMessage(func(m twitchirc.NoticeMessage) {
		t.logger.Info("Twitch notice",
			slog.String("channel", m.Channel),
			slog.String("text", m.Message))
	})
	client.OnReconnectMessage(func(twitchirc.ReconnectMessage) {
		t.logger.Info("Twitch requested a reconnect")
	})
	client.Join(t.config.Channels...)

	defer func() {
		t.mu.Lock()
		t.client = nil
		t.joined = nil
		t.mu.Unlock()
	}()

	done := make(chan error, 1)
	go func() { done <- client.Connect() }()

	select {
	case err := <-done:
		if errors.Is(err, twitchirc.ErrLoginAuthenticationFailed) {
			return joinedAny.Load(), ErrTwitchAuthFailed
		}
		return joinedAny.Load(), fmt.Errorf("connect %s: %w", t.config.Addr, err)
	case <-ctx.Done():
		t.disconnect(client, done)
		return joinedAny.Load(), ctx.Err()
	}
}

// disconnect closes client and waits for Connect to return. Disconnect fails
// until the socket is open, so it is retried while the dial is in flight.
func (t *TwitchNotifier) disconnect(client *twitchirc.Client, done <-chan error) {
	ticker := time.NewTicker(twitchDisconnectPoll)
	defer ticker.Stop()
	deadline := time.After(t.config.Timeout)

	closed := false
	for {
		if !closed {
			closed = client.Disconnect() == nil
		}
		select {
		case <-done:
			return
		case <-deadline:
			t.logger.Warn("Twitch session did not close in time")
			return
		case <-ticker.C:
		}
	}
}

func (t *TwitchNotifier) markJoined(channel string) {
	t.mu.Lock()
	if t.joined == nil {
		t.mu.Unlock()
		return
	}
	t.joined[channel] = true
	all := true
	for _, ch := range t.config.Channels {
		if !t.joined[ch] {
			all = false
			break
		}
	}
	t.mu.Unlock()

	if all {
		t.readyOnce.Do(func() {
			t.ready <- t.Channels()
		})
	}
}

// NotifyText posts text to every configured channel. This method implements
// the Notifier interface. Every channel is attempted and failures are joined.
func (t *TwitchNotifier) NotifyText(ctx context.Context, text string) error {
	var errs []error
	for _, ch := range t.config.Channels {
		if err := t.SendToChannel(ctx, ch, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendToChannel says text in channel. Line breaks in text are folded into
// spaces and the body is cut to Twitch's message limit. The client queues the
// line for its writer, so a write lost to a dropping connection goes
// unreported.
func (t *TwitchNotifier) SendToChannel(ctx context.Context, channel, text string) error {
	channel = normalizeChannel(channel)

	if err := t.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	t.mu.Lock()
	client := t.client
	joined := t.joined[channel]
	t.mu.Unlock()

	if client == nil {
		return fmt.Errorf("send to #%s: %w", channel, ErrTwitchNotConnected)
	}
	if !joined {
		return fmt.Errorf("send to #%s: %w", channel, ErrTwitchNotJoined)
	}

	client.Say(channel, truncateText(flattenLines(text), maxTwitchMessageLength, "..."))
	return nil
}

// twitchValidateResponse is the subset of the token validation response in use.
type twitchValidateResponse struct {
	Login string `json:"login"`
}

// resolveNick asks Twitch which login owns the access token.
func (t *TwitchNotifier) resolveNick(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.config.ValidateURL, nil)
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+t.config.AccessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("twitch token validation failed with status %d", resp.StatusCode),
		}
	}

	var body twitchValidateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode validation response: %w", err)
	}
	if body.Login == "" {
		return "", errors.New("validation response carried no login")
	}
	return strings.ToLower(body.Login), nil
}

func normalizeChannel(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func flattenLines(text string) string {
	return lineBreaks.Replace(text)
}
