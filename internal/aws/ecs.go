package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"ecs-deploy/internal/metrics"
)

// ECSAPI is the subset of the ECS control plane this tool calls.
type ECSAPI interface {
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
	DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
}

type ECSClient struct {
	api ECSAPI
}

func NewECSClient(cfg aws.Config) *ECSClient {
	return &ECSClient{api: ecs.NewFromConfig(cfg)}
}

// RegistrationError reports the control plane rejecting a task definition.
type RegistrationError struct {
	Message string
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register task definition: %s", e.Message)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// RegisterTaskDefinition submits a normalized document and returns the
// versioned ARN of the newly registered definition. The document travels as
// JSON; field names match the API's camelCase, which encoding/json maps onto
// the SDK input case-insensitively.
func (c *ECSClient) RegisterTaskDefinition(ctx context.Context, doc map[string]any) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode task definition: %w", err)
	}
	var input ecs.RegisterTaskDefinitionInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return "", fmt.Errorf("invalid task definition: %w", err)
	}

	start := time.Now()
	out, err := c.api.RegisterTaskDefinition(ctx, &input)
	metrics.RecordAWSCall("ecs", "RegisterTaskDefinition", start, err)
	if err != nil {
		return "", &RegistrationError{Message: apiErrorMessage(err), Err: err}
	}
	return aws.ToString(out.TaskDefinition.TaskDefinitionArn), nil
}

// DescribeService fetches a single service. A failure entry or an empty
// result is an error; the caller classifies it.
func (c *ECSClient) DescribeService(ctx context.Context, cluster, service string) (types.Service, error) {
	start := time.Now()
	out, err := c.api.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	})
	metrics.RecordAWSCall("ecs", "DescribeServices", start, err)
	if err != nil {
		return types.Service{}, err
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return types.Service{}, fmt.Errorf("%s: %s", aws.ToString(f.Arn), aws.ToString(f.Reason))
	}
	if len(out.Services) == 0 {
		return types.Service{}, fmt.Errorf("service %s not found in cluster %s", service, cluster)
	}
	return out.Services[0], nil
}

func (c *ECSClient) UpdateService(ctx context.Context, cluster, service, taskDefArn string, force bool) error {
	start := time.Now()
	_, err := c.api.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(cluster),
		Service:            aws.String(service),
		TaskDefinition:     aws.String(taskDefArn),
		ForceNewDeployment: force,
	})
	metrics.RecordAWSCall("ecs", "UpdateService", start, err)
	if err != nil {
		return fmt.Errorf("failed to update service %s: %w", service, err)
	}
	return nil
}

func (c *ECSClient) RunTask(ctx context.Context, input *ecs.RunTaskInput) (*ecs.RunTaskOutput, error) {
	start := time.Now()
	out, err := c.api.RunTask(ctx, input)
	metrics.RecordAWSCall("ecs", "RunTask", start, err)
	return out, err
}

func (c *ECSClient) DescribeTasks(ctx context.Context, cluster string, taskArns []string) ([]types.Task, error) {
	start := time.Now()
	out, err := c.api.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(cluster),
		Tasks:   taskArns,
	})
	metrics.RecordAWSCall("ecs", "DescribeTasks", start, err)
	if err != nil {
		return nil, err
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return nil, fmt.Errorf("failed to describe tasks: %s: %s", aws.ToString(f.Arn), aws.ToString(f.Reason))
	}
	return out.Tasks, nil
}
