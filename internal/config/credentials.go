package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	pkgconfig "donation-relay/internal/pkg/config"
)

// DefaultCredentialsFile is read when RELAY_CREDENTIALS_FILE is unset.
const DefaultCredentialsFile = "credentials.json"

// Credentials holds the secrets and identifiers needed to reach Tiltify and
// the chat destinations. The file is parsed as YAML, which also accepts the
// JSON layout used by existing deployments.
type Credentials struct {
	TiltifyClientID     string   `yaml:"tiltify_client_id"`
	TiltifyClientSecret string   `yaml:"tiltify_client_secret"`
	TiltifyUserSlug     string   `yaml:"tiltify_user_slug"`
	TiltifyCampaignSlug string   `yaml:"tiltify_campaign_slug"`
	TwitchAccessToken   string   `yaml:"twitch_access_token"`
	TwitchChannelNames  []string `yaml:"twitch_channel_names"`
	TwitchBotNick       string   `yaml:"twitch_bot_nick"`
	DiscordWebhookURL   string   `yaml:"discord_webhook_url"`
	SlackWebhookURL     string   `yaml:"slack_webhook_url"`
}

// LoadCredentials reads the credentials file at path, applies environment
// overrides and validates the result. A missing file is not an error as long
// as the environment supplies every required value.
// The path parameter is expected to come from a trusted source (environment or hardcoded default).
func LoadCredentials(path string) (*Credentials, error) {
	var creds Credentials

	// #nosec G304 -- path is provided by the operator, not user input
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// environment only
	default:
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	creds.applyEnv()
	creds.normalize()

	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("credentials validation failed: %w", err)
	}
	return &creds, nil
}

// applyEnv overrides each field with its upper-cased environment variable.
func (c *Credentials) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.TiltifyClientID, "TILTIFY_CLIENT_ID")
	override(&c.TiltifyClientSecret, "TILTIFY_CLIENT_SECRET")
	override(&c.TiltifyUserSlug, "TILTIFY_USER_SLUG")
	override(&c.TiltifyCampaignSlug, "TILTIFY_CAMPAIGN_SLUG")
	override(&c.TwitchAccessToken, "TWITCH_ACCESS_TOKEN")
	override(&c.TwitchBotNick, "TWITCH_BOT_NICK")
	override(&c.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	override(&c.SlackWebhookURL, "SLACK_WEBHOOK_URL")

	if v := os.Getenv("TWITCH_CHANNEL_NAMES"); v != "" {
		c.TwitchChannelNames = pkgconfig.SplitList(v)
	}
}

// normalize trims values and canonicalises Twitch identifiers: tokens lose
// their "oauth:" prefix, channel names lose "#" and are lower-cased.
func (c *Credentials) normalize() {
	c.TiltifyClientID = strings.TrimSpace(c.TiltifyClientID)
	c.TiltifyClientSecret = strings.TrimSpace(c.TiltifyClientSecret)
	c.TiltifyUserSlug = strings.TrimSpace(c.TiltifyUserSlug)
	c.TiltifyCampaignSlug = strings.TrimSpace(c.TiltifyCampaignSlug)
	c.TwitchAccessToken = strings.TrimPrefix(strings.TrimSpace(c.TwitchAccessToken), "oauth:")
	c.TwitchBotNick = strings.ToLower(strings.TrimSpace(c.TwitchBotNick))
	c.DiscordWebhookURL = strings.TrimSpace(c.DiscordWebhookURL)
	c.SlackWebhookURL = strings.TrimSpace(c.SlackWebhookURL)

	channels := make([]string, 0, len(c.TwitchChannelNames))
	for _, name := range c.TwitchChannelNames {
		name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
		if name != "" {
			channels = append(channels, name)
		}
	}
	c.TwitchChannelNames = channels
}

// TwitchEnabled reports whether Twitch chat delivery is configured.
func (c *Credentials) TwitchEnabled() bool {
	return c.TwitchAccessToken != "" && len(c.TwitchChannelNames) > 0
}

// DiscordEnabled reports whether a Discord webhook is configured.
func (c *Credentials) DiscordEnabled() bool {
	return c.DiscordWebhookURL != ""
}

// SlackEnabled reports whether a Slack webhook is configured.
func (c *Credentials) SlackEnabled() bool {
	return c.SlackWebhookURL != ""
}

// Validate checks required fields. All problems are reported together.
func (c *Credentials) Validate() error {
	var errs []error

	required := []struct {
		value string
		key   string
	}{
		{c.TiltifyClientID, "tiltify_client_id"},
		{c.TiltifyClientSecret, "tiltify_client_secret"},
		{c.TiltifyUserSlug, "tiltify_user_slug"},
		{c.TiltifyCampaignSlug, "tiltify_campaign_slug"},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required (or %s)", r.key, strings.ToUpper(r.key)))
		}
	}

	if c.TwitchAccessToken != "" && len(c.TwitchChannelNames) == 0 {
		errs = append(errs, errors.New("twitch_channel_names is required when twitch_access_token is set"))
	}
	if len(c.TwitchChannelNames) > 0 && c.TwitchAccessToken == "" {
		errs = append(errs, errors.New("twitch_access_token is required when twitch_channel_names is set"))
	}
	if c.DiscordEnabled() {
		if err := pkgconfig.ValidateHTTPSURL(c.DiscordWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("discord_webhook_url: %w", err))
		}
	}
	if c.SlackEnabled() {
		if err := pkgconfig.ValidateHTTPSURL(c.SlackWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("slack_webhook_url: %w", err))
		}
	}

	if !c.TwitchEnabled() && !c.DiscordEnabled() && !c.SlackEnabled() {
		errs = append(errs, errors.New("no destinations configured: set twitch, discord or slack credentials"))
	}

	return errors.Join(errs...)
}
