package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"ecs-deploy/internal/metrics"
)

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type STSClient struct {
	api STSAPI
}

func NewSTSClient(cfg aws.Config) *STSClient {
	return &STSClient{api: sts.NewFromConfig(cfg)}
}

// CallerIdentity reports the account and principal ARN the tool runs as.
func (c *STSClient) CallerIdentity(ctx context.Context) (account, arn string, err error) {
	start := time.Now()
	out, err := c.api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	metrics.RecordAWSCall("sts", "GetCallerIdentity", start, err)
	if err != nil {
		return "", "", err
	}
	return aws.ToString(out.Account), aws.ToString(out.Arn), nil
}
