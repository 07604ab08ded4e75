// Package runtask launches a one-off task outside any service and optionally
// waits for it to stop, surfacing container exit codes.
package runtask

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"ecs-deploy/internal/config"
	"ecs-deploy/internal/waiter"
)

// ECS is the control-plane surface the runner needs.
type ECS interface {
	RunTask(ctx context.Context, input *ecs.RunTaskInput) (*ecs.RunTaskOutput, error)
	DescribeTasks(ctx context.Context, cluster string, taskArns []string) ([]types.Task, error)
}

type Runner struct {
	ecs  ECS
	opts config.Options
}

func NewRunner(ecs ECS, opts config.Options) *Runner {
	return &Runner{ecs: ecs, opts: opts}
}

// Result carries the ARNs of the launched tasks.
type Result struct {
	TaskArns []string
}

// LaunchError reports a per-task failure entry from the launch call. One
// failing task aborts the run even if siblings in the batch launched.
type LaunchError struct {
	Arn    string
	Reason string
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch task %s: %s", e.Arn, e.Reason)
}

// ContainerFailure is one container that finished with a nonzero exit code.
type ContainerFailure struct {
	Name     string
	ExitCode int32
	Reason   string
}

// TaskExecutionError aggregates every failing container, not just the first.
type TaskExecutionError struct {
	Failures []ContainerFailure
}

func (e *TaskExecutionError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("container %s exited with code %d: %s", f.Name, f.ExitCode, f.Reason))
	}
	return "task execution failed: " + strings.Join(msgs, "; ")
}

// Run launches the task and, when configured, waits for it to stop and
// checks exit codes. The partial result is returned alongside wait errors so
// the caller can still surface the launched ARNs.
func (r *Runner) Run(ctx context.Context, taskDefArn string) (*Result, error) {
	overrides, err := parseOverrides(r.opts.RunTaskContainerOverrides)
	if err != nil {
		return nil, err
	}

	input := &ecs.RunTaskInput{
		Cluster:        aws.String(r.opts.Cluster),
		TaskDefinition: aws.String(taskDefArn),
		Count:          aws.Int32(r.opts.RunTaskCount),
		LaunchType:     types.LaunchType(r.opts.RunTaskLaunchType),
		StartedBy:      aws.String(r.opts.RunTaskStartedBy),
		Overrides:      overrides,
	}
	// The API treats an absent network configuration and an empty one as
	// different requests; attach the block only when something is set.
	if len(r.opts.RunTaskSubnets) > 0 || len(r.opts.RunTaskSecurityGroups) > 0 {
		assign := types.AssignPublicIpDisabled
		if r.opts.RunTaskAssignPublicIP {
			assign = types.AssignPublicIpEnabled
		}
		input.NetworkConfiguration = &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        r.opts.RunTaskSubnets,
				SecurityGroups: r.opts.RunTaskSecurityGroups,
				AssignPublicIp: assign,
			},
		}
	}

	out, err := r.ecs.RunTask(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run task: %w", err)
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return nil, &LaunchError{Arn: aws.ToString(f.Arn), Reason: aws.ToString(f.Reason)}
	}

	arns := make([]string, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		arns = append(arns, aws.ToString(t.TaskArn))
	}
	result := &Result{TaskArns: arns}
	log.Printf("[RUNTASK] Launched %d task(s): %s", len(arns), strings.Join(arns, ", "))

	if !r.opts.WaitForTaskStopped {
		return result, nil
	}
	if err := r.waitForStopped(ctx, arns); err != nil {
		return result, err
	}
	return result, r.checkExitCodes(ctx, arns)
}

func parseOverrides(raw string) (*types.TaskOverride, error) {
	if raw == "" {
		return nil, nil
	}
	var containerOverrides []types.ContainerOverride
	if err := json.Unmarshal([]byte(raw), &containerOverrides); err != nil {
		return nil, fmt.Errorf("invalid container overrides: %w", err)
	}
	return &types.TaskOverride{ContainerOverrides: containerOverrides}, nil
}

func (r *Runner) waitForStopped(ctx context.Context, arns []string) error {
	policy := waiter.FromMinutes(r.opts.WaitForMinutes)
	log.Printf("[RUNTASK] Waiting for %d task(s) to stop (up to %s)", len(arns), policy.Budget())
	return waiter.Wait(ctx, "tasks to stop", policy, func(ctx context.Context) (bool, error) {
		tasks, err := r.ecs.DescribeTasks(ctx, r.opts.Cluster, arns)
		if err != nil {
			return false, err
		}
		for _, t := range tasks {
			if aws.ToString(t.LastStatus) != "STOPPED" {
				return false, nil
			}
		}
		return true, nil
	})
}

// checkExitCodes inspects the stopped tasks' containers and aggregates every
// nonzero (or missing) exit code into a single error.
func (r *Runner) checkExitCodes(ctx context.Context, arns []string) error {
	tasks, err := r.ecs.DescribeTasks(ctx, r.opts.Cluster, arns)
	if err != nil {
		return err
	}
	var failures []ContainerFailure
	for _, t := range tasks {
		for _, c := range t.Containers {
			if c.ExitCode != nil && *c.ExitCode == 0 {
				continue
			}
			reason := aws.ToString(c.Reason)
			if reason == "" {
				reason = aws.ToString(t.StoppedReason)
			}
			failures = append(failures, ContainerFailure{
				Name:     aws.ToString(c.Name),
				ExitCode: aws.ToInt32(c.ExitCode),
				Reason:   reason,
			})
		}
	}
	if len(failures) > 0 {
		return &TaskExecutionError{Failures: failures}
	}
	log.Printf("[RUNTASK] All containers exited cleanly")
	return nil
}
