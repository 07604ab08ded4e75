package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeECSAPI struct {
	registerInput *ecs.RegisterTaskDefinitionInput
	registerErr   error
	describeOut   *ecs.DescribeServicesOutput
}

func (f *fakeECSAPI) RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error) {
	f.registerInput = params
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &ecs.RegisterTaskDefinitionOutput{
		TaskDefinition: &types.TaskDefinition{
			TaskDefinitionArn: aws.String("arn:aws:ecs:us-east-1:123456789012:task-definition/web:9"),
		},
	}, nil
}

func (f *fakeECSAPI) DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	return f.describeOut, nil
}

func (f *fakeECSAPI) UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	return &ecs.UpdateServiceOutput{}, nil
}

func (f *fakeECSAPI) RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	return &ecs.RunTaskOutput{}, nil
}

func (f *fakeECSAPI) DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error) {
	return &ecs.DescribeTasksOutput{}, nil
}

func TestRegisterTaskDefinition(t *testing.T) {
	t.Run("Should map camelCase document fields onto the SDK input and return the ARN", func(t *testing.T) {
		api := &fakeECSAPI{}
		client := &ECSClient{api: api}

		doc := map[string]any{
			"family":      "web",
			"networkMode": "awsvpc",
			"containerDefinitions": []any{
				map[string]any{"name": "app", "image": "app:latest", "essential": true},
			},
		}
		arn, err := client.RegisterTaskDefinition(context.Background(), doc)

		require.NoError(t, err)
		assert.Equal(t, "arn:aws:ecs:us-east-1:123456789012:task-definition/web:9", arn)
		require.NotNil(t, api.registerInput)
		assert.Equal(t, "web", aws.ToString(api.registerInput.Family))
		assert.Equal(t, types.NetworkModeAwsvpc, api.registerInput.NetworkMode)
		require.Len(t, api.registerInput.ContainerDefinitions, 1)
		assert.Equal(t, "app", aws.ToString(api.registerInput.ContainerDefinitions[0].Name))
	})

	t.Run("Should wrap rejection in RegistrationError carrying the remote message", func(t *testing.T) {
		api := &fakeECSAPI{registerErr: &smithy.GenericAPIError{
			Code:    "ClientException",
			Message: "Container.name should not be null or empty",
		}}
		client := &ECSClient{api: api}

		_, err := client.RegisterTaskDefinition(context.Background(), map[string]any{"family": "web"})

		var reg *RegistrationError
		require.ErrorAs(t, err, &reg)
		assert.Contains(t, reg.Message, "should not be null or empty")
	})
}

func TestDescribeService(t *testing.T) {
	t.Run("Should surface failure entries as errors", func(t *testing.T) {
		api := &fakeECSAPI{describeOut: &ecs.DescribeServicesOutput{
			Failures: []types.Failure{{Arn: aws.String("arn:svc"), Reason: aws.String("MISSING")}},
		}}
		client := &ECSClient{api: api}

		_, err := client.DescribeService(context.Background(), "demo", "web")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MISSING")
	})

	t.Run("Should error when no service comes back", func(t *testing.T) {
		api := &fakeECSAPI{describeOut: &ecs.DescribeServicesOutput{}}
		client := &ECSClient{api: api}

		_, err := client.DescribeService(context.Background(), "demo", "web")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("Should return the described service", func(t *testing.T) {
		api := &fakeECSAPI{describeOut: &ecs.DescribeServicesOutput{
			Services: []types.Service{{Status: aws.String("ACTIVE")}},
		}}
		client := &ECSClient{api: api}

		svc, err := client.DescribeService(context.Background(), "demo", "web")
		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", aws.ToString(svc.Status))
	})
}
