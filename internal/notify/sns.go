package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"docgen-workers/internal/models"
)

// Publisher is satisfied by the SNS client wrapper in internal/common/aws.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSNotifier publishes every record as JSON to a topic.
type SNSNotifier struct {
	publisher Publisher
	topicARN  string
}

func NewSNSNotifier(publisher Publisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{publisher: publisher, topicARN: topicARN}
}

func (n *SNSNotifier) Notify(ctx context.Context, rec models.GenerationRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode generation record %s: %w", rec.ID, err)
	}

	_, err = n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject(rec)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status":       {DataType: aws.String("String"), StringValue: aws.String(rec.Status)},
			"documentType": {DataType: aws.String("String"), StringValue: aws.String(rec.DocumentType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish generation record %s: %w", rec.ID, err)
	}
	return nil
}

// subject fits the 100 character SNS subject limit.
func subject(rec models.GenerationRecord) string {
	s := fmt.Sprintf("Document generation %s: %s.%s", rec.Status, rec.TemplateName, rec.DocumentType)
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
