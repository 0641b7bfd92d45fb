// Package email sends invite emails through SES and renders their bodies
// from embedded templates.
package email

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/kiddobash/kiddobash.com/go/config"
)

// Mailer sends one email. The SES implementation is used in production; the
// noop implementation logs instead of sending so development never emails
// real parents.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// New returns the mailer for the current environment.
func New(cfg *config.Config) Mailer {
	if cfg.Production() {
		return &sesMailer{sender: cfg.SESSender}
	}
	return &noopMailer{}
}

type sesMailer struct {
	sender string
}

var initSES = sync.OnceValues(func() (*ses.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	return ses.NewFromConfig(awsCfg), nil
})

func (s *sesMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	client, err := initSES()
	if err != nil {
		return fmt.Errorf("init ses client: %w", err)
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(s.sender),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	out, err := client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send email via ses: %w", err)
	}
	log.Printf("invite email sent to %s (message id %s)", to, aws.ToString(out.MessageId))
	return nil
}

type noopMailer struct{}

func (n *noopMailer) Send(_ context.Context, to, subject, _, _ string) error {
	log.Printf("email not sent (noop mailer): to=%s subject=%q", to, subject)
	return nil
}
