package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// HandleSNSEvent is the Lambda entry point for SNS-triggered invocations.
// Each record's message is handled in order. The first store or mailer
// failure is returned so that the Lambda runtime applies its retry policy;
// malformed messages never produce an error.
func (h *Handler) HandleSNSEvent(ctx context.Context, event events.SNSEvent) error {
	if len(event.Records) == 0 {
		h.logger.Error("SNS event contains no records")
		return nil
	}

	for _, record := range event.Records {
		logger := h.logger.WithField("sns_message_id", record.SNS.MessageID)
		logger.Debugf("Received SNS message: %s", record.SNS.Message)

		outcome, err := h.Handle(ctx, record.SNS.Message)
		if err != nil {
			return fmt.Errorf("failed to handle SNS message %s: %w", record.SNS.MessageID, err)
		}

		logger.WithField("outcome", outcome.String()).Debug("SNS message handled")
	}

	return nil
}
