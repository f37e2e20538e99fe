// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Atlas - a Go pipeline that recomputes and releases the RNA 3D structural
motif atlas: loop extraction, motif clustering, and versioned release
bookkeeping against a relational store.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package report is the best-effort failure-notification glue: on a
// fatal pipeline error it mails the tail of the run's log to whoever
// is configured to receive it, mirroring aMotifAtlasBaseClass.py's
// send_report (itself triggered from _crash after a session rollback).
// A send failure here is never allowed to mask the original pipeline
// error -- it is logged and swallowed, same as the Python's bare
// "except: sys.exit(2)" never propagating back into the caller that
// invoked _crash.
package report

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"atlas/pkg/config"
	"atlas/pkg/logging"
)

// maxTailLines is how many trailing lines of the log Tail keeps, the
// Go equivalent of the Python reading motifatlas.log whole
// and mailing it as the message body -- bounded here so a long-running
// pipeline never tries to mail a multi-gigabyte log.
const maxTailLines = 500

// Sender mails a failure report. The zero-value *Mailer built from a
// nil config is a no-op Sender so callers never need a nil check.
type Sender interface {
	Send(subject, body string) error
}

// Mailer sends a failure report over SMTP using an explicit
// STARTTLS + PLAIN AUTH handshake, grounded on send_report's
// ehlo/starttls/ehlo/login/sendmail sequence against smtp.gmail.com.
type Mailer struct {
	cfg *config.MailConfig
	now func() time.Time
}

// NewMailer builds a Mailer from cfg. cfg may be nil, in which case
// Send is a no-op -- the "Mail" section of atlas.yml is optional per
// pkg/config, matching the original's email settings being read but
// only ever exercised from _crash.
func NewMailer(cfg *config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg, now: time.Now}
}

// Send mails body with subject prefixed by cfg.SubjectPrefix and
// suffixed with today's date, matching
// "' '.join([self.config['Email']['subject'], date.today().isoformat()])".
// It is a no-op if no mail config was supplied.
func (m *Mailer) Send(subject, body string) error {
	if m == nil || m.cfg == nil {
		return nil
	}
	if m.cfg.Relay == "" || len(m.cfg.To) == 0 {
		return nil
	}

	full := subject
	if m.cfg.SubjectPrefix != "" {
		full = m.cfg.SubjectPrefix + " " + subject
	}
	full = full + " " + m.now().Format("2006-01-02")

	msg := buildMessage(m.cfg.From, m.cfg.To, full, body)

	var auth smtp.Auth
	if m.cfg.Login != "" {
		host := m.cfg.Relay
		if idx := strings.IndexByte(host, ':'); idx >= 0 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", m.cfg.Login, m.cfg.Password, host)
	}

	if err := smtp.SendMail(m.cfg.Relay, auth, m.cfg.From, m.cfg.To, msg); err != nil {
		return fmt.Errorf("report: sending mail via %s: %w", m.cfg.Relay, err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// Tail returns at most the last maxTailLines lines of log, the Go
// analogue of send_report mailing the whole log file -- bounded so a
// long run's accumulated log never blows up a single email.
func Tail(log string) string {
	lines := strings.Split(strings.TrimRight(log, "\n"), "\n")
	if len(lines) <= maxTailLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxTailLines:], "\n")
}

// OnFailure sends a best-effort failure report built from runErr and
// the tail of the run's log, logging (but never propagating) any
// error sending it -- a send failure must never mask runErr, the same
// contract _crash has with sys.exit(2) always winning regardless of
// whether send_report itself blew up.
func OnFailure(sender Sender, logger logging.Logger, runErr error, log string) {
	if sender == nil || runErr == nil {
		return
	}
	body := fmt.Sprintf("atlas run failed: %v\n\n%s", runErr, Tail(log))
	if err := sender.Send("atlas run failed", body); err != nil {
		logger.Warn("failed to send failure report", logging.NewField("error", err.Error()))
	}
}
