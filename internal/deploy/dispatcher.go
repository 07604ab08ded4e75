// Package deploy routes a freshly registered task definition to the rollout
// strategy matching the service's deployment controller and optionally blocks
// until the rollout is observably done.
package deploy

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cdtypes "github.com/aws/aws-sdk-go-v2/service/codedeploy/types"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	ecsaws "ecs-deploy/internal/aws"
	"ecs-deploy/internal/config"
	"ecs-deploy/internal/metrics"
)

const (
	StrategyUpdateService = "update-service"
	StrategyCodeDeploy    = "codedeploy"
)

// ControlPlane is the ECS surface the dispatcher and the direct strategy need.
type ControlPlane interface {
	DescribeService(ctx context.Context, cluster, service string) (ecstypes.Service, error)
	UpdateService(ctx context.Context, cluster, service, taskDefArn string, force bool) error
}

// Orchestrator is the CodeDeploy surface the blue/green strategy needs.
type Orchestrator interface {
	BlueGreenWaitMinutes(ctx context.Context, app, group string) (int32, error)
	CreateDeployment(ctx context.Context, req ecsaws.DeploymentRequest) (string, error)
	DeploymentStatus(ctx context.Context, deploymentID string) (cdtypes.DeploymentStatus, error)
}

// Outcome reports which strategy ran and, for blue/green rollouts, the
// created deployment's ID.
type Outcome struct {
	Strategy     string
	DeploymentID string
}

type Dispatcher struct {
	ecs  ControlPlane
	cd   Orchestrator
	opts config.Options
}

func NewDispatcher(ecs ControlPlane, cd Orchestrator, opts config.Options) *Dispatcher {
	return &Dispatcher{ecs: ecs, cd: cd, opts: opts}
}

// Deploy classifies the service by its deployment controller and hands off to
// the matching strategy. The classification is one-shot: a single describe
// call, no state retained across invocations.
func (d *Dispatcher) Deploy(ctx context.Context, taskDefArn string) (outcome *Outcome, err error) {
	svc, lookupErr := d.ecs.DescribeService(ctx, d.opts.Cluster, d.opts.Service)
	if lookupErr != nil {
		return nil, &ServiceLookupError{Cluster: d.opts.Cluster, Service: d.opts.Service, Err: lookupErr}
	}
	if status := aws.ToString(svc.Status); status != "ACTIVE" {
		return nil, &ServiceNotActiveError{Service: d.opts.Service, Status: status}
	}

	controller := ""
	if svc.DeploymentController != nil {
		controller = string(svc.DeploymentController.Type)
	}

	var strategy string
	switch controller {
	case "", string(ecstypes.DeploymentControllerTypeEcs):
		strategy = StrategyUpdateService
	case string(ecstypes.DeploymentControllerTypeCodeDeploy):
		strategy = StrategyCodeDeploy
	default:
		return nil, &UnsupportedControllerError{Type: controller}
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.RecordRollout(strategy, status, time.Since(start))
	}()

	if strategy == StrategyCodeDeploy {
		return d.blueGreenDeploy(ctx, taskDefArn)
	}
	return d.updateService(ctx, taskDefArn)
}
