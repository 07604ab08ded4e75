package runtask

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecs-deploy/internal/config"
)

type fakeECS struct {
	runInput    *ecs.RunTaskInput
	runOutput   *ecs.RunTaskOutput
	runErr      error
	tasks       []types.Task
	describeErr error
}

func (f *fakeECS) RunTask(ctx context.Context, input *ecs.RunTaskInput) (*ecs.RunTaskOutput, error) {
	f.runInput = input
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.runOutput, nil
}

func (f *fakeECS) DescribeTasks(ctx context.Context, cluster string, taskArns []string) ([]types.Task, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return f.tasks, nil
}

const taskArn = "arn:aws:ecs:us-east-1:123456789012:task/demo/abc123"

func launched() *ecs.RunTaskOutput {
	return &ecs.RunTaskOutput{
		Tasks: []types.Task{{TaskArn: aws.String(taskArn)}},
	}
}

func testOptions() config.Options {
	opts := config.Default()
	opts.Cluster = "demo"
	opts.RunTask = true
	return opts
}

func TestRunnerRun(t *testing.T) {
	t.Run("Should omit the network configuration when no subnets or security groups are given", func(t *testing.T) {
		fake := &fakeECS{runOutput: launched()}
		result, err := NewRunner(fake, testOptions()).Run(context.Background(), taskArn)

		require.NoError(t, err)
		assert.Equal(t, []string{taskArn}, result.TaskArns)
		assert.Nil(t, fake.runInput.NetworkConfiguration)
		assert.Equal(t, types.LaunchTypeFargate, fake.runInput.LaunchType)
		assert.Equal(t, "ecs-deploy", aws.ToString(fake.runInput.StartedBy))
	})

	t.Run("Should build an awsvpc configuration when subnets are given", func(t *testing.T) {
		fake := &fakeECS{runOutput: launched()}
		opts := testOptions()
		opts.RunTaskSubnets = []string{"subnet-1", "subnet-2"}
		opts.RunTaskSecurityGroups = []string{"sg-1"}
		opts.RunTaskAssignPublicIP = true

		_, err := NewRunner(fake, opts).Run(context.Background(), taskArn)

		require.NoError(t, err)
		nc := fake.runInput.NetworkConfiguration
		require.NotNil(t, nc)
		require.NotNil(t, nc.AwsvpcConfiguration)
		assert.Equal(t, []string{"subnet-1", "subnet-2"}, nc.AwsvpcConfiguration.Subnets)
		assert.Equal(t, []string{"sg-1"}, nc.AwsvpcConfiguration.SecurityGroups)
		assert.Equal(t, types.AssignPublicIpEnabled, nc.AwsvpcConfiguration.AssignPublicIp)
	})

	t.Run("Should parse container overrides", func(t *testing.T) {
		fake := &fakeECS{runOutput: launched()}
		opts := testOptions()
		opts.RunTaskContainerOverrides = `[{"name": "web", "command": ["migrate"]}]`

		_, err := NewRunner(fake, opts).Run(context.Background(), taskArn)

		require.NoError(t, err)
		require.NotNil(t, fake.runInput.Overrides)
		require.Len(t, fake.runInput.Overrides.ContainerOverrides, 1)
		assert.Equal(t, "web", aws.ToString(fake.runInput.Overrides.ContainerOverrides[0].Name))
		assert.Equal(t, []string{"migrate"}, fake.runInput.Overrides.ContainerOverrides[0].Command)
	})

	t.Run("Should reject invalid container overrides", func(t *testing.T) {
		opts := testOptions()
		opts.RunTaskContainerOverrides = `{not json`
		_, err := NewRunner(&fakeECS{}, opts).Run(context.Background(), taskArn)
		require.Error(t, err)
	})

	t.Run("Should fail with LaunchError on a per-task failure entry", func(t *testing.T) {
		fake := &fakeECS{runOutput: &ecs.RunTaskOutput{
			Tasks: []types.Task{{TaskArn: aws.String(taskArn)}},
			Failures: []types.Failure{{
				Arn:    aws.String(taskArn),
				Reason: aws.String("RESOURCE:MEMORY"),
			}},
		}}
		_, err := NewRunner(fake, testOptions()).Run(context.Background(), taskArn)

		var launch *LaunchError
		require.ErrorAs(t, err, &launch)
		assert.Equal(t, "RESOURCE:MEMORY", launch.Reason)
	})

	t.Run("Should surface every failing container after waiting", func(t *testing.T) {
		fake := &fakeECS{
			runOutput: launched(),
			tasks: []types.Task{{
				TaskArn:    aws.String(taskArn),
				LastStatus: aws.String("STOPPED"),
				Containers: []types.Container{
					{Name: aws.String("web"), ExitCode: aws.Int32(1), Reason: aws.String("OutOfMemoryError")},
					{Name: aws.String("sidecar"), ExitCode: aws.Int32(0)},
					{Name: aws.String("init"), ExitCode: aws.Int32(2), Reason: aws.String("config missing")},
				},
			}},
		}
		opts := testOptions()
		opts.WaitForTaskStopped = true
		opts.WaitForMinutes = 1

		result, err := NewRunner(fake, opts).Run(context.Background(), taskArn)

		require.NotNil(t, result)
		var exec *TaskExecutionError
		require.ErrorAs(t, err, &exec)
		require.Len(t, exec.Failures, 2)
		assert.Contains(t, err.Error(), "OutOfMemoryError")
		assert.Contains(t, err.Error(), "config missing")
	})

	t.Run("Should fall back to the task stopped reason when a container has none", func(t *testing.T) {
		fake := &fakeECS{
			runOutput: launched(),
			tasks: []types.Task{{
				TaskArn:       aws.String(taskArn),
				LastStatus:    aws.String("STOPPED"),
				StoppedReason: aws.String("Essential container exited"),
				Containers:    []types.Container{{Name: aws.String("web")}},
			}},
		}
		opts := testOptions()
		opts.WaitForTaskStopped = true
		opts.WaitForMinutes = 1

		_, err := NewRunner(fake, opts).Run(context.Background(), taskArn)

		var exec *TaskExecutionError
		require.ErrorAs(t, err, &exec)
		assert.Equal(t, "Essential container exited", exec.Failures[0].Reason)
	})

	t.Run("Should succeed when every container exits zero", func(t *testing.T) {
		fake := &fakeECS{
			runOutput: launched(),
			tasks: []types.Task{{
				TaskArn:    aws.String(taskArn),
				LastStatus: aws.String("STOPPED"),
				Containers: []types.Container{{Name: aws.String("web"), ExitCode: aws.Int32(0)}},
			}},
		}
		opts := testOptions()
		opts.WaitForTaskStopped = true
		opts.WaitForMinutes = 1

		result, err := NewRunner(fake, opts).Run(context.Background(), taskArn)
		require.NoError(t, err)
		assert.Equal(t, []string{taskArn}, result.TaskArns)
	})

	t.Run("Should not wait when wait-for-task-stopped is off", func(t *testing.T) {
		fake := &fakeECS{runOutput: launched(), describeErr: assert.AnError}
		result, err := NewRunner(fake, testOptions()).Run(context.Background(), taskArn)
		require.NoError(t, err)
		assert.NotEmpty(t, result.TaskArns)
	})
}
