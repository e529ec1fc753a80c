// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package mail

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/samber/oops"
)

// sesAPI is the subset of the SES client used by SESMailer.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends password-reset mail through Amazon SES.
type SESMailer struct {
	client sesAPI
	from   string
}

// NewSESClient loads the default AWS configuration for region.
func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, oops.Code("MAIL_AWS_CONFIG_FAILED").With("region", region).Wrap(err)
	}
	return ses.NewFromConfig(cfg), nil
}

// NewSESMailer creates an SESMailer. An empty from uses DefaultFrom.
func NewSESMailer(client sesAPI, from string) *SESMailer {
	if from == "" {
		from = DefaultFrom
	}
	return &SESMailer{client: client, from: from}
}

func content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

// SendPasswordReset implements Mailer.
func (m *SESMailer) SendPasswordReset(ctx context.Context, msg Message) error {
	r, err := Render(msg)
	if err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(m.from),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: content(r.Subject),
			Body: &types.Body{
				Text: content(r.Text),
				Html: content(r.HTML),
			},
		},
	}
	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("scope", msg.Scope.String()).
			With("provider", "ses").
			Wrap(err)
	}
	return nil
}

var _ Mailer = (*SESMailer)(nil)
