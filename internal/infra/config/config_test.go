package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CHANNEL", "")
	t.Setenv("APP_BASE_URL", "")
	t.Setenv("MISSED_FIRE_GRACE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, ChannelConsole, cfg.Channel)
	assert.Equal(t, "http://localhost:3000", cfg.AppBaseURL)
	assert.Equal(t, 15*time.Minute, cfg.MissedFireGrace)
	assert.Equal(t, time.Minute, cfg.CatchUpTolerance)
	assert.Equal(t, "* * * * *", cfg.WakeCronSpec)
}

func TestLoad_Telegram(t *testing.T) {
	t.Setenv("CHANNEL", "telegram")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("APP_BASE_URL", "https://habits.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.TelegramChatID)
	assert.Equal(t, "https://habits.example.com", cfg.AppBaseURL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"STORE_DRIVER": "redis"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"mongo without uri", map[string]string{"STORE_DRIVER": "mongo", "MONGODB_URI": ""}},
		{"telegram without token", map[string]string{"CHANNEL": "telegram", "TELEGRAM_TOKEN": ""}},
		{"telegram bad chat", map[string]string{"CHANNEL": "telegram", "TELEGRAM_TOKEN": "t", "TELEGRAM_CHAT_ID": "me"}},
		{"bad grace", map[string]string{"MISSED_FIRE_GRACE": "soon"}},
		{"unknown channel", map[string]string{"CHANNEL": "pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
