package deploy

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"ecs-deploy/internal/waiter"
)

// updateService is the direct strategy: an in-place UpdateService call,
// optionally followed by a bounded wait for steady state.
func (d *Dispatcher) updateService(ctx context.Context, taskDefArn string) (*Outcome, error) {
	log.Printf("[DEPLOY] Updating service %s in cluster %s with %s", d.opts.Service, d.opts.Cluster, taskDefArn)
	if err := d.ecs.UpdateService(ctx, d.opts.Cluster, d.opts.Service, taskDefArn, d.opts.ForceNewDeployment); err != nil {
		return nil, err
	}

	if d.opts.WaitForServiceStability {
		policy := waiter.FromMinutes(d.opts.WaitForMinutes)
		log.Printf("[DEPLOY] Waiting for service %s to stabilize (up to %s)", d.opts.Service, policy.Budget())
		condition := fmt.Sprintf("service %s stability", d.opts.Service)
		err := waiter.Wait(ctx, condition, policy, func(ctx context.Context) (bool, error) {
			svc, err := d.ecs.DescribeService(ctx, d.opts.Cluster, d.opts.Service)
			if err != nil {
				return false, err
			}
			return serviceSteady(svc), nil
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[DEPLOY] Service %s is stable", d.opts.Service)
	}

	return &Outcome{Strategy: StrategyUpdateService}, nil
}

// serviceSteady reports steady state: a single PRIMARY deployment whose
// rollout completed, with running counts matching desired.
func serviceSteady(svc ecstypes.Service) bool {
	if len(svc.Deployments) != 1 {
		return false
	}
	dep := svc.Deployments[0]
	if aws.ToString(dep.Status) != "PRIMARY" {
		return false
	}
	if dep.RolloutState != "" && dep.RolloutState != ecstypes.DeploymentRolloutStateCompleted {
		return false
	}
	return dep.RunningCount == dep.DesiredCount && svc.RunningCount == svc.DesiredCount
}
