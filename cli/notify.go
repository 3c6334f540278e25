package cli

import (
	"time"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
	"github.com/bisyncd/bisyncd/internal/notify"
	"github.com/bisyncd/bisyncd/internal/syncengine"
)

// stickyFailureDedupWindow bounds how often the same job/message pair can
// re-page an operator, per SPEC_FULL.md §11.
const stickyFailureDedupWindow = 15 * time.Minute

// buildNotifier adapts a loaded config's notify_email block into a
// syncengine.Notifier, returning nil (a no-op) when the block is absent.
func buildNotifier(cfg *config.NotifyEmailConfig, log corelog.Logger) syncengine.Notifier {
	if !cfg.Enabled() {
		return nil
	}
	mailer := notify.NewMailer(notify.MailConfig{
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUser:     cfg.SMTPUser,
		SMTPPassword: cfg.SMTPPass,
		EmailFrom:    cfg.From,
		EmailTo:      cfg.To,
	}, notify.NewDedup(stickyFailureDedupWindow), log)
	if mailer == nil {
		return nil
	}
	return mailer
}
