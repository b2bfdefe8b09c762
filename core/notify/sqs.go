// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/relabs-tech/tablegate/core"
	"github.com/relabs-tech/tablegate/core/logger"
)

// SQSConfiguration configures the SQS notifier. Without AccessID the default
// AWS credential chain is used.
type SQSConfiguration struct {
	QueueURL  string
	AWSRegion string
	AccessID  string
	AccessKey string
}

type messageSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS sends notifications to an SQS queue
type SQS struct {
	client   messageSender
	queueURL string
}

// NewSQS returns a new SQS notifier
func NewSQS(ctx context.Context, sqsConfig SQSConfiguration) (*SQS, error) {
	if sqsConfig.QueueURL == "" {
		return nil, fmt.Errorf("QueueURL must not be empty")
	}

	options := []func(*config.LoadOptions) error{}
	if sqsConfig.AWSRegion != "" {
		options = append(options, config.WithRegion(sqsConfig.AWSRegion))
	}
	if sqsConfig.AccessID != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sqsConfig.AccessID, sqsConfig.AccessKey, "")))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("sqs notifications enabled, queue", sqsConfig.QueueURL)
	return &SQS{client: sqs.NewFromConfig(awsConfig), queueURL: sqsConfig.QueueURL}, nil
}

// Notify implements core.Notifier
func (s *SQS) Notify(ctx context.Context, notification core.Notification) error {
	body, err := Encode(notification)
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"resource":  {DataType: aws.String("String"), StringValue: aws.String(notification.Resource)},
			"operation": {DataType: aws.String("String"), StringValue: aws.String(string(notification.Operation))},
		},
	})
	if err != nil {
		return fmt.Errorf("cannot send to sqs queue %s: %w", s.queueURL, err)
	}
	return nil
}
