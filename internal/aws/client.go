// Package aws wraps the AWS service clients this tool talks to. The wrappers
// are thin: they carry the credentials/endpoint bootstrap, API-call metrics,
// and the error shaping the rest of the tool relies on.
package aws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
)

// LoadConfig builds the shared SDK configuration. Static credentials and a
// custom endpoint (LocalStack and friends) come from the environment when
// present; region and endpoint are threaded in from the options.
func LoadConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if ak := os.Getenv("AWS_ACCESS_KEY_ID"); ak != "" {
		sk := os.Getenv("AWS_SECRET_ACCESS_KEY")
		token := os.Getenv("AWS_SESSION_TOKEN")
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, token),
		))
	}

	if endpoint != "" {
		log.Printf("[AWS] Using custom endpoint: %s", endpoint)
		opts = append(opts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
				}, nil
			}),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}

// apiErrorMessage extracts the service-reported message from an SDK error,
// falling back to the whole error string.
func apiErrorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorMessage()
	}
	return err.Error()
}
