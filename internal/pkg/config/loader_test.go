package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvString(t *testing.T) {
	t.Run("with value", func(t *testing.T) {
		t.Setenv("TEST_STRING", "custom_value")
		assert.Equal(t, "custom_value", LoadEnvString("TEST_STRING", "default_value"))
	})

	t.Run("empty uses default", func(t *testing.T) {
		t.Setenv("TEST_STRING", "")
		assert.Equal(t, "default_value", LoadEnvString("TEST_STRING", "default_value"))
	})
}

func TestLoadEnvWithFallback(t *testing.T) {
	t.Run("valid value", func(t *testing.T) {
		t.Setenv("TEST_URL", "https://discord.com/api/webhooks/1/abc")

		result := LoadEnvWithFallback("TEST_URL", "", ValidateHTTPSURL)

		assert.Equal(t, "https://discord.com/api/webhooks/1/abc", result.Value)
		assert.Empty(t, result.Warnings)
		assert.False(t, result.FallbackApplied)
	})

	t.Run("invalid value falls back with warning", func(t *testing.T) {
		t.Setenv("TEST_URL", "http://insecure.example.com")

		result := LoadEnvWithFallback("TEST_URL", "https://default.example.com", ValidateHTTPSURL)

		assert.Equal(t, "https://default.example.com", result.Value)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "Invalid TEST_URL='http://insecure.example.com'")
		assert.Contains(t, result.Warnings[0], "falling back to default")
		assert.True(t, result.FallbackApplied)
	})

	t.Run("no validator accepts anything", func(t *testing.T) {
		t.Setenv("TEST_STRING", "any_value")

		result := LoadEnvWithFallback("TEST_STRING", "default", nil)

		assert.Equal(t, "any_value", result.Value)
		assert.False(t, result.FallbackApplied)
	})
}

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		validator    func(time.Duration) error
		wantValue    time.Duration
		wantFallback bool
	}{
		{name: "unset uses default", envValue: "", wantValue: 5 * time.Second},
		{name: "valid value", envValue: "10s", validator: ValidatePositiveDuration, wantValue: 10 * time.Second},
		{name: "compound duration", envValue: "1m30s", wantValue: 90 * time.Second},
		{name: "surrounding spaces are trimmed", envValue: " 2s ", wantValue: 2 * time.Second},
		{name: "invalid format", envValue: "five seconds", wantValue: 5 * time.Second, wantFallback: true},
		{name: "missing unit", envValue: "30", wantValue: 5 * time.Second, wantFallback: true},
		{name: "zero rejected by validator", envValue: "0s", validator: ValidatePositiveDuration, wantValue: 5 * time.Second, wantFallback: true},
		{
			name:     "outside range",
			envValue: "2h",
			validator: func(d time.Duration) error {
				return ValidateDuration(d, time.Second, time.Hour)
			},
			wantValue:    5 * time.Second,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)

			result := LoadEnvDuration("TEST_DURATION", 5*time.Second, tt.validator)

			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				assert.Len(t, result.Warnings, 1)
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	pageSize := func(v int) error { return ValidateIntRange(v, 1, 100) }

	tests := []struct {
		name         string
		envValue     string
		wantValue    int
		wantFallback bool
	}{
		{name: "unset uses default", envValue: "", wantValue: 100},
		{name: "valid value", envValue: "25", wantValue: 25},
		{name: "lower bound", envValue: "1", wantValue: 1},
		{name: "below minimum", envValue: "0", wantValue: 100, wantFallback: true},
		{name: "above maximum", envValue: "101", wantValue: 100, wantFallback: true},
		{name: "decimal format", envValue: "2.5", wantValue: 100, wantFallback: true},
		{name: "not a number", envValue: "many", wantValue: 100, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)

			result := LoadEnvInt("TEST_INT", 100, pageSize)

			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		envValue     string
		wantValue    bool
		wantFallback bool
	}{
		{envValue: "", wantValue: false},
		{envValue: "true", wantValue: true},
		{envValue: "1", wantValue: true},
		{envValue: "TRUE", wantValue: true},
		{envValue: "false", wantValue: false},
		{envValue: "0", wantValue: false},
		{envValue: "yes", wantValue: false, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run("value="+tt.envValue, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)

			result := LoadEnvBool("TEST_BOOL", false)

			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				require.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0], "invalid boolean format")
			}
		})
	}
}

func TestLoadEnvDecimal(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		wantValue    string
		wantFallback bool
	}{
		{name: "unset uses default", envValue: "", wantValue: "0"},
		{name: "integer", envValue: "5", wantValue: "5"},
		{name: "fraction keeps precision", envValue: "4.99", wantValue: "4.99"},
		{name: "negative rejected", envValue: "-1", wantValue: "0", wantFallback: true},
		{name: "garbage", envValue: "five", wantValue: "0", wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DECIMAL", tt.envValue)

			result := LoadEnvDecimal("TEST_DECIMAL", decimal.Zero, ValidateNonNegativeDecimal)

			assert.True(t, decimal.RequireFromString(tt.wantValue).Equal(result.Value),
				"got %s, want %s", result.Value, tt.wantValue)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: nil},
		{raw: "alpha", want: []string{"alpha"}},
		{raw: "alpha, beta ,gamma", want: []string{"alpha", "beta", "gamma"}},
		{raw: " , alpha,,", want: []string{"alpha"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.raw))
		})
	}
}
