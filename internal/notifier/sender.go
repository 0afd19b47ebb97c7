package notifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// ErrPermanentDelivery marks a failure that will not go away on retry, such
// as a recipient that blocked the bot or no longer exists.
var ErrPermanentDelivery = errors.New("permanent delivery failure")

// Sender delivers one rendered message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipientID string, msg models.Message) error
}

// PreviewSender logs messages instead of delivering them. It is used outside
// production so a sync can be exercised without reaching real recipients.
type PreviewSender struct{}

func (PreviewSender) Send(ctx context.Context, recipientID string, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("Notification preview", "recipient", recipientID, "title", msg.Title, "body", msg.Body)
	return nil
}
