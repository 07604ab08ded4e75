package config

import (
	"fmt"
	"os"
)

// Options is the full invocation surface of the tool. It is built once at the
// entry point (flags plus environment fallbacks) and passed explicitly; core
// logic never reads the environment on its own.
type Options struct {
	Region      string
	EndpointURL string

	// Exactly one of these two supplies the task definition: a document to
	// register, or the ARN of a definition registered elsewhere.
	TaskDefinitionFile string
	TaskDefinitionArn  string

	Cluster string
	Service string

	WaitForServiceStability bool
	WaitForMinutes          int
	ForceNewDeployment      bool

	RunTask                   bool
	RunTaskCount              int32
	RunTaskContainerOverrides string
	RunTaskSubnets            []string
	RunTaskSecurityGroups     []string
	RunTaskAssignPublicIP     bool
	RunTaskLaunchType         string
	RunTaskStartedBy          string
	WaitForTaskStopped        bool

	CodeDeployAppSpecFile     string
	CodeDeployApplication     string
	CodeDeployDeploymentGroup string
	CodeDeployDescription     string

	// WorkspaceDir anchors relative file paths (task definition, appspec).
	WorkspaceDir   string
	AuditLog       string
	PushgatewayURL string
}

// Default returns the options a bare invocation starts from.
func Default() Options {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Options{
		Region:                "us-east-1",
		Cluster:               "default",
		WaitForMinutes:        30,
		RunTaskCount:          1,
		RunTaskLaunchType:     "FARGATE",
		RunTaskStartedBy:      "ecs-deploy",
		CodeDeployAppSpecFile: "appspec.yaml",
		WorkspaceDir:          wd,
	}
}

// ApplyEnvOverrides fills options from environment variables, the way CI
// systems conventionally pass configuration.
func (o *Options) ApplyEnvOverrides() {
	if r := os.Getenv("AWS_REGION"); r != "" {
		o.Region = r
	}
	if ep := os.Getenv("AWS_ENDPOINT_URL"); ep != "" {
		o.EndpointURL = ep
	}
	if ws := os.Getenv("ECS_DEPLOY_WORKSPACE"); ws != "" {
		o.WorkspaceDir = ws
	}
	if url := os.Getenv("ECS_DEPLOY_PUSHGATEWAY_URL"); url != "" {
		o.PushgatewayURL = url
	}
}

// Validate checks the option combination before any remote call is made.
func (o *Options) Validate() error {
	if o.TaskDefinitionFile == "" && o.TaskDefinitionArn == "" {
		return fmt.Errorf("either a task definition file or a task definition ARN is required")
	}
	if o.TaskDefinitionFile != "" && o.TaskDefinitionArn != "" {
		return fmt.Errorf("task definition file and task definition ARN are mutually exclusive")
	}
	if o.Cluster == "" {
		return fmt.Errorf("cluster name cannot be empty")
	}
	if o.WaitForMinutes < 0 {
		return fmt.Errorf("wait minutes cannot be negative")
	}
	if o.WaitForTaskStopped && !o.RunTask {
		return fmt.Errorf("wait-for-task-stopped requires run-task")
	}
	if o.RunTask && o.RunTaskCount < 1 {
		return fmt.Errorf("run task count must be at least 1")
	}
	return nil
}
