package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"docgen-workers/internal/models"
)

// EmailSender is satisfied by the SES client wrapper in internal/common/aws.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SESNotifier emails the locator of each successful generation. Failed
// generations are not mailed.
type SESNotifier struct {
	sender     EmailSender
	from       string
	recipients []string
}

func NewSESNotifier(sender EmailSender, from string, recipients []string) *SESNotifier {
	return &SESNotifier{sender: sender, from: from, recipients: recipients}
}

func (n *SESNotifier) Notify(ctx context.Context, rec models.GenerationRecord) error {
	if !rec.Succeeded() || len(n.recipients) == 0 {
		return nil
	}

	_, err := n.sender.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &types.Destination{ToAddresses: n.recipients},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(fmt.Sprintf("Document ready: %s", rec.TemplateName))},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(emailBody(rec))}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to email generation record %s: %w", rec.ID, err)
	}
	return nil
}

func emailBody(rec models.GenerationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Template: %s\n", rec.TemplateName)
	fmt.Fprintf(&b, "Type: %s\n", rec.DocumentType)
	if rec.Locator != "" {
		fmt.Fprintf(&b, "Location: %s\n", rec.Locator)
	} else {
		fmt.Fprintf(&b, "Path: %s\n", rec.OutputPath)
	}
	fmt.Fprintf(&b, "Size: %d bytes\n", rec.Size)
	fmt.Fprintf(&b, "Generated at: %s\n", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
