package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/lifelink-api/internal/config"
	"github.com/lifelink-api/internal/domain"
	"github.com/lifelink-api/internal/infrastructure/awsconf"
	"golang.org/x/time/rate"
)

// undeliverableCodes are SNS error codes a retry cannot fix.
var undeliverableCodes = map[string]bool{
	(&types.InvalidParameterException{}).ErrorCode():      true,
	(&types.InvalidParameterValueException{}).ErrorCode(): true,
	(&types.EndpointDisabledException{}).ErrorCode():      true,
}

type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Channel sends SMS alerts through AWS SNS, paced by a token bucket.
type Channel struct {
	client  publishAPI
	limiter *rate.Limiter
}

func NewChannel(ctx context.Context, cfg *config.Config) (*Channel, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	endpoint := awsconf.Endpoint(cfg)
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.BaseEndpoint = endpoint
	})
	return newChannel(client, cfg.SMSRatePerSec), nil
}

func newChannel(client publishAPI, perSec float64) *Channel {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	return &Channel{client: client, limiter: rate.NewLimiter(limit, 1)}
}

func (c *Channel) Name() domain.Channel { return domain.ChannelSMS }

// Send waits for a token then publishes directly to the phone number.
// Rejected numbers are reported as undeliverable.
func (c *Channel) Send(ctx context.Context, to, message string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && undeliverableCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("sns rejected %s: %v: %w", to, err, domain.ErrUndeliverable)
	}
	return fmt.Errorf("sns publish: %w", err)
}
