// Command ecs-deploy registers an ECS task definition and rolls it out:
// directly via UpdateService, or through CodeDeploy when the service uses the
// CODE_DEPLOY controller, with an optional one-off task run in between.
//
// Machine-readable outputs go to stdout; all diagnostics go to stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ecs-deploy/internal/audit"
	ecsaws "ecs-deploy/internal/aws"
	"ecs-deploy/internal/config"
	"ecs-deploy/internal/deploy"
	"ecs-deploy/internal/metrics"
	"ecs-deploy/internal/runtask"
	"ecs-deploy/internal/taskdef"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("ecs-deploy: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.Default()
	cmd := &cobra.Command{
		Use:           "ecs-deploy",
		Short:         "Register an ECS task definition and deploy it to a service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ApplyEnvOverrides()
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.TaskDefinitionFile, "task-definition", "", "path to the task definition file (JSON or YAML)")
	f.StringVar(&opts.TaskDefinitionArn, "task-definition-arn", "", "ARN of an already registered task definition; skips registration")
	f.StringVar(&opts.Cluster, "cluster", opts.Cluster, "ECS cluster name")
	f.StringVar(&opts.Service, "service", "", "ECS service to deploy; omit to only register")
	f.BoolVar(&opts.WaitForServiceStability, "wait-for-service-stability", false, "block until the rollout completes")
	f.IntVar(&opts.WaitForMinutes, "wait-for-minutes", opts.WaitForMinutes, "how long to wait for completion (capped at 360)")
	f.BoolVar(&opts.ForceNewDeployment, "force-new-deployment", false, "force a new deployment of the service")
	f.BoolVar(&opts.RunTask, "run-task", false, "run the task definition as a one-off task before deploying")
	f.Int32Var(&opts.RunTaskCount, "run-task-count", opts.RunTaskCount, "number of one-off tasks to launch")
	f.StringVar(&opts.RunTaskContainerOverrides, "run-task-container-overrides", "", "JSON container overrides for the one-off task")
	f.StringSliceVar(&opts.RunTaskSubnets, "run-task-subnets", nil, "subnets for the one-off task")
	f.StringSliceVar(&opts.RunTaskSecurityGroups, "run-task-security-groups", nil, "security groups for the one-off task")
	f.BoolVar(&opts.RunTaskAssignPublicIP, "run-task-assign-public-ip", false, "assign a public IP to the one-off task")
	f.StringVar(&opts.RunTaskLaunchType, "run-task-launch-type", opts.RunTaskLaunchType, "launch type for the one-off task")
	f.StringVar(&opts.RunTaskStartedBy, "run-task-started-by", opts.RunTaskStartedBy, "startedBy tag for the one-off task")
	f.BoolVar(&opts.WaitForTaskStopped, "wait-for-task-stopped", false, "block until the one-off task stops and check exit codes")
	f.StringVar(&opts.CodeDeployAppSpecFile, "codedeploy-appspec", opts.CodeDeployAppSpecFile, "path to the appspec file for CODE_DEPLOY services")
	f.StringVar(&opts.CodeDeployApplication, "codedeploy-application", "", "CodeDeploy application name (default AppECS-{cluster}-{service})")
	f.StringVar(&opts.CodeDeployDeploymentGroup, "codedeploy-deployment-group", "", "CodeDeploy deployment group name (default DgpECS-{cluster}-{service})")
	f.StringVar(&opts.CodeDeployDescription, "codedeploy-deployment-description", "", "description attached to the CodeDeploy deployment")
	f.StringVar(&opts.AuditLog, "audit-log", "", "append JSONL audit events to this file")

	return cmd
}

func run(ctx context.Context, opts config.Options) error {
	cfg, err := ecsaws.LoadConfig(ctx, opts.Region, opts.EndpointURL)
	if err != nil {
		return err
	}
	ecsClient := ecsaws.NewECSClient(cfg)
	cdClient := ecsaws.NewCodeDeployClient(cfg)

	if account, arn, err := ecsaws.NewSTSClient(cfg).CallerIdentity(ctx); err == nil {
		log.Printf("[AUTH] Running as %s (account %s)", arn, account)
	} else {
		log.Printf("[AUTH] Could not determine caller identity: %v", err)
	}

	trail, err := audit.NewLogger(opts.AuditLog)
	if err != nil {
		return err
	}
	defer trail.Close()

	defer func() {
		if err := metrics.Push(opts.PushgatewayURL); err != nil {
			log.Printf("[METRICS] Push failed: %v", err)
		}
	}()

	arn := opts.TaskDefinitionArn
	if arn == "" {
		arn, err = registerTaskDefinition(ctx, ecsClient, opts)
		if err != nil {
			return err
		}
		_ = trail.Log(audit.Event{EventType: audit.EventTaskDefRegistered, Cluster: opts.Cluster, TaskDefinition: arn})
	} else {
		log.Printf("[TASKDEF] Using pre-registered task definition %s", arn)
	}
	fmt.Printf("task-definition-arn=%s\n", arn)

	if opts.RunTask {
		result, err := runtask.NewRunner(ecsClient, opts).Run(ctx, arn)
		if result != nil && len(result.TaskArns) > 0 {
			fmt.Printf("run-task-arns=%s\n", strings.Join(result.TaskArns, ","))
			_ = trail.Log(audit.Event{
				EventType:      audit.EventTaskLaunched,
				Cluster:        opts.Cluster,
				TaskDefinition: arn,
				Metadata:       map[string]any{"task_arns": result.TaskArns},
			})
		}
		if err != nil {
			return err
		}
	}

	if opts.Service == "" {
		log.Printf("[DEPLOY] No service given; skipping deployment")
		return nil
	}

	_ = trail.Log(audit.Event{EventType: audit.EventRolloutStarted, Cluster: opts.Cluster, Service: opts.Service, TaskDefinition: arn})
	start := time.Now()
	outcome, err := deploy.NewDispatcher(ecsClient, cdClient, opts).Deploy(ctx, arn)
	if err != nil {
		_ = trail.Log(audit.Event{
			EventType:    audit.EventRolloutFailed,
			Cluster:      opts.Cluster,
			Service:      opts.Service,
			ErrorMessage: err.Error(),
		})
		return err
	}
	_ = trail.Log(audit.Event{
		EventType:    audit.EventRolloutCompleted,
		Cluster:      opts.Cluster,
		Service:      opts.Service,
		Strategy:     outcome.Strategy,
		DeploymentID: outcome.DeploymentID,
		Metadata:     map[string]any{"duration_seconds": time.Since(start).Seconds()},
	})

	if outcome.DeploymentID != "" {
		fmt.Printf("codedeploy-deployment-id=%s\n", outcome.DeploymentID)
	}
	log.Printf("[DEPLOY] Rollout via %s completed", outcome.Strategy)
	return nil
}

// registerTaskDefinition loads, normalizes, and registers the document. On
// rejection the normalized document is dumped to the diagnostic channel so
// the summary error stays short.
func registerTaskDefinition(ctx context.Context, client *ecsaws.ECSClient, opts config.Options) (string, error) {
	doc, err := taskdef.Load(opts.TaskDefinitionFile, opts.WorkspaceDir)
	if err != nil {
		return "", err
	}
	doc, warnings := taskdef.Normalize(doc)
	for _, w := range warnings {
		log.Printf("[TASKDEF] Warning: %s", w)
	}

	arn, err := client.RegisterTaskDefinition(ctx, doc)
	if err != nil {
		if dump, jerr := json.MarshalIndent(doc, "", "  "); jerr == nil {
			log.Printf("[TASKDEF] Rejected task definition:\n%s", dump)
		}
		return "", err
	}
	log.Printf("[TASKDEF] Registered task definition %s", arn)
	return arn, nil
}
