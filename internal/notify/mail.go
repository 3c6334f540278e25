// Package notify implements the supplemental sticky-error email
// notification (SPEC_FULL.md §11), grounded on the teacher's
// middlewares/mail.go Mail middleware, adapted from "email on job
// execution finish" to "email once a job's resync becomes sticky-FAILED".
package notify

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"os"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"github.com/bisyncd/bisyncd/internal/corelog"
)

// MailConfig is the SMTP configuration for sticky-failure notification.
type MailConfig struct {
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SMTPTLSSkipVerify bool
	EmailFrom         string
	EmailTo           string
}

func (c MailConfig) isEmpty() bool {
	return c.SMTPHost == "" || c.EmailFrom == "" || c.EmailTo == ""
}

// Mailer sends a notification email the first time a job's resync
// becomes sticky-FAILED, deduplicated by Dedup so a job stuck in the
// FAILED state doesn't re-page the operator on every tick.
type Mailer struct {
	cfg   MailConfig
	dedup *Dedup
	log   corelog.Logger
}

// NewMailer returns nil if cfg is empty (no notify_email block configured),
// mirroring the teacher's NewMail returning a nil Middleware for an empty
// MailConfig.
func NewMailer(cfg MailConfig, dedup *Dedup, log corelog.Logger) *Mailer {
	if cfg.isEmpty() {
		return nil
	}
	if dedup == nil {
		dedup = NewDedup(0)
	}
	return &Mailer{cfg: cfg, dedup: dedup, log: log}
}

// NotifyStickyFailure satisfies syncengine.Notifier.
func (m *Mailer) NotifyStickyFailure(jobKey, localPath, message string) {
	if m == nil {
		return
	}
	if !m.dedup.ShouldNotify(jobKey, message) {
		m.log.Debugf("[notify %q] suppressing duplicate sticky-failure email within cooldown", jobKey)
		return
	}
	if err := m.send(jobKey, localPath, message); err != nil {
		m.log.Errorf("[notify %q] sending sticky-failure email: %v", jobKey, err)
	}
}

func (m *Mailer) send(jobKey, localPath, message string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from())
	msg.SetHeader("To", strings.Split(m.cfg.EmailTo, ",")...)
	msg.SetHeader("Subject", fmt.Sprintf("[bisyncd] sync job %q requires attention", jobKey))

	var buf bytes.Buffer
	_ = bodyTemplate.Execute(&buf, map[string]string{
		"JobKey":    jobKey,
		"LocalPath": localPath,
		"Message":   message,
	})
	msg.SetBody("text/html", buf.String())

	d := mail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUser, m.cfg.SMTPPassword)
	if m.cfg.SMTPTLSSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("dial and send mail: %w", err)
	}
	return nil
}

func (m *Mailer) from() string {
	if !strings.Contains(m.cfg.EmailFrom, "%") {
		return m.cfg.EmailFrom
	}
	hostname, _ := os.Hostname()
	return fmt.Sprintf(m.cfg.EmailFrom, hostname)
}

var bodyTemplate = template.Must(template.New("sticky-failure").Parse(`
	<p>
		Sync job <b>{{.JobKey}}</b> (<code>{{.LocalPath}}</code>) has a sticky
		resync failure and will not retry automatically.
	</p>
	<p>{{.Message}}</p>
	<p>Run <code>bisyncd sync {{.JobKey}} --resync {{.JobKey}}</code> once the
	underlying issue is resolved, or clear the job's state in
	<code>sync_state.json</code>.</p>
`))
