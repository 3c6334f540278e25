package cli

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
)

func notifyTestLogger() corelog.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return &corelog.LogrusAdapter{Logger: l}
}

func TestBuildNotifierNilForUnconfiguredBlock(t *testing.T) {
	t.Parallel()

	assert.Nil(t, buildNotifier(nil, notifyTestLogger()))
	assert.Nil(t, buildNotifier(&config.NotifyEmailConfig{}, notifyTestLogger()))
}

func TestBuildNotifierBuildsMailerWhenConfigured(t *testing.T) {
	t.Parallel()

	cfg := &config.NotifyEmailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		From:     "bisyncd@example.com",
		To:       "ops@example.com",
	}
	n := buildNotifier(cfg, notifyTestLogger())
	assert.NotNil(t, n)
}
