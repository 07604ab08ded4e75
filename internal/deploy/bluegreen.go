package deploy

import (
	"context"
	"fmt"
	"log"

	cdtypes "github.com/aws/aws-sdk-go-v2/service/codedeploy/types"

	ecsaws "ecs-deploy/internal/aws"
	"ecs-deploy/internal/waiter"
)

// maxDescriptionLength is CodeDeploy's limit on deployment descriptions.
const maxDescriptionLength = 512

// blueGreenDeploy is the CODE_DEPLOY strategy: patch the externally owned
// appspec with the new task definition ARN, hand it to CodeDeploy, and
// optionally wait for the deployment to succeed.
func (d *Dispatcher) blueGreenDeploy(ctx context.Context, taskDefArn string) (*Outcome, error) {
	app := d.opts.CodeDeployApplication
	if app == "" {
		app = fmt.Sprintf("AppECS-%s-%s", d.opts.Cluster, d.opts.Service)
	}
	group := d.opts.CodeDeployDeploymentGroup
	if group == "" {
		group = fmt.Sprintf("DgpECS-%s-%s", d.opts.Cluster, d.opts.Service)
	}

	spec, err := LoadAppSpec(d.opts.CodeDeployAppSpecFile, d.opts.WorkspaceDir)
	if err != nil {
		return nil, err
	}
	if err := spec.SetTaskDefinition(taskDefArn); err != nil {
		return nil, err
	}
	content, sha, err := spec.Render()
	if err != nil {
		return nil, err
	}

	log.Printf("[DEPLOY] Creating CodeDeploy deployment for %s/%s (appspec sha256 %s)", app, group, sha)
	deploymentID, err := d.cd.CreateDeployment(ctx, ecsaws.DeploymentRequest{
		Application: app,
		Group:       group,
		Content:     content,
		Sha256:      sha,
		Description: truncateDescription(d.opts.CodeDeployDescription),
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[DEPLOY] Created deployment %s", deploymentID)

	if d.opts.WaitForServiceStability {
		// CodeDeploy holds the deployment through its own ready and
		// termination windows, so the group's configured minutes extend the
		// caller's budget before the global ceiling applies.
		groupWait, err := d.cd.BlueGreenWaitMinutes(ctx, app, group)
		if err != nil {
			return nil, err
		}
		policy := blueGreenWaitPolicy(d.opts.WaitForMinutes, groupWait)
		log.Printf("[DEPLOY] Waiting for deployment %s to succeed (up to %s)", deploymentID, policy.Budget())
		err = waiter.Wait(ctx, "deployment "+deploymentID, policy, func(ctx context.Context) (bool, error) {
			status, err := d.cd.DeploymentStatus(ctx, deploymentID)
			if err != nil {
				return false, err
			}
			switch status {
			case cdtypes.DeploymentStatusSucceeded:
				return true, nil
			case cdtypes.DeploymentStatusFailed, cdtypes.DeploymentStatusStopped:
				return false, &DeploymentFailedError{DeploymentID: deploymentID, Status: string(status)}
			}
			return false, nil
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[DEPLOY] Deployment %s succeeded", deploymentID)
	}

	return &Outcome{Strategy: StrategyCodeDeploy, DeploymentID: deploymentID}, nil
}

// blueGreenWaitPolicy budgets the wait as the caller's minutes plus the
// deployment group's ready and termination windows; the global ceiling still
// applies to the sum.
func blueGreenWaitPolicy(callerMinutes int, groupMinutes int32) waiter.Policy {
	return waiter.FromMinutes(callerMinutes + int(groupMinutes))
}

// truncateDescription trims a description to CodeDeploy's limit, keeping 511
// characters plus a single ellipsis marker.
func truncateDescription(desc string) string {
	runes := []rune(desc)
	if len(runes) <= maxDescriptionLength {
		return desc
	}
	return string(runes[:maxDescriptionLength-1]) + "…"
}
