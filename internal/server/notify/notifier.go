// Package notify delivers one-time codes to users. The production
// transport is out of scope; the log notifier stands in for it.
package notify

import (
	"context"

	"github.com/avdeev-dm/accountd/internal/logging"
	"github.com/avdeev-dm/accountd/internal/server/otp"
)

// Notifier delivers a one-time code to the given address.
type Notifier interface {
	Send(ctx context.Context, email string, code string, purpose otp.Purpose, name string) error
}

// LogNotifier writes codes to the application log instead of sending mail.
// Intended for development and tests.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, email string, code string, purpose otp.Purpose, name string) error {
	n.logger.Info(ctx, "one-time code issued", "email", email, "code", code, "purpose", string(purpose), "name", name)
	return nil
}
