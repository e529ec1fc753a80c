// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/authscope/authscope/internal/logging"
)

// LogMailer writes password-reset mail to a logger. Intended for development.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendPasswordReset implements Mailer.
func (m *LogMailer) SendPasswordReset(ctx context.Context, msg Message) error {
	r, err := Render(msg)
	if err != nil {
		return err
	}
	ctx = logging.WithScope(ctx, msg.Scope.String())
	m.logger.InfoContext(ctx, "password reset mail",
		"to", msg.To,
		"subject", r.Subject,
		"reset_url", msg.ResetURL)
	m.logger.DebugContext(ctx, "password reset mail body", "text", r.Text)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
