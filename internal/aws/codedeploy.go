package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy/types"

	"ecs-deploy/internal/metrics"
)

// CodeDeployAPI is the subset of the CodeDeploy control plane this tool calls.
type CodeDeployAPI interface {
	GetDeploymentGroup(ctx context.Context, params *codedeploy.GetDeploymentGroupInput, optFns ...func(*codedeploy.Options)) (*codedeploy.GetDeploymentGroupOutput, error)
	CreateDeployment(ctx context.Context, params *codedeploy.CreateDeploymentInput, optFns ...func(*codedeploy.Options)) (*codedeploy.CreateDeploymentOutput, error)
	GetDeployment(ctx context.Context, params *codedeploy.GetDeploymentInput, optFns ...func(*codedeploy.Options)) (*codedeploy.GetDeploymentOutput, error)
}

type CodeDeployClient struct {
	api CodeDeployAPI
}

func NewCodeDeployClient(cfg aws.Config) *CodeDeployClient {
	return &CodeDeployClient{api: codedeploy.NewFromConfig(cfg)}
}

// DeploymentRequest is one blue/green handoff: inline appspec content plus
// its digest, addressed to an application/deployment-group pair.
type DeploymentRequest struct {
	Application string
	Group       string
	Content     string
	Sha256      string
	Description string
}

// DeploymentSubmissionError reports CodeDeploy rejecting a deployment request.
type DeploymentSubmissionError struct {
	Application string
	Group       string
	Err         error
}

func (e *DeploymentSubmissionError) Error() string {
	return fmt.Sprintf("failed to create deployment for %s/%s: %s", e.Application, e.Group, apiErrorMessage(e.Err))
}

func (e *DeploymentSubmissionError) Unwrap() error { return e.Err }

// BlueGreenWaitMinutes returns the sum of the deployment group's configured
// ready-wait and termination-wait windows. A deployment cannot signal success
// before those have elapsed, so they extend every caller's wait budget.
func (c *CodeDeployClient) BlueGreenWaitMinutes(ctx context.Context, app, group string) (int32, error) {
	start := time.Now()
	out, err := c.api.GetDeploymentGroup(ctx, &codedeploy.GetDeploymentGroupInput{
		ApplicationName:     aws.String(app),
		DeploymentGroupName: aws.String(group),
	})
	metrics.RecordAWSCall("codedeploy", "GetDeploymentGroup", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to describe deployment group %s/%s: %w", app, group, err)
	}

	info := out.DeploymentGroupInfo
	if info == nil || info.BlueGreenDeploymentConfiguration == nil {
		return 0, nil
	}
	bg := info.BlueGreenDeploymentConfiguration
	var total int32
	if bg.DeploymentReadyOption != nil {
		total += bg.DeploymentReadyOption.WaitTimeInMinutes
	}
	if bg.TerminateBlueInstancesOnDeploymentSuccess != nil {
		total += bg.TerminateBlueInstancesOnDeploymentSuccess.TerminationWaitTimeInMinutes
	}
	return total, nil
}

// CreateDeployment submits an inline-appspec deployment and returns its ID.
func (c *CodeDeployClient) CreateDeployment(ctx context.Context, req DeploymentRequest) (string, error) {
	input := &codedeploy.CreateDeploymentInput{
		ApplicationName:     aws.String(req.Application),
		DeploymentGroupName: aws.String(req.Group),
		Revision: &types.RevisionLocation{
			RevisionType: types.RevisionLocationTypeAppSpecContent,
			AppSpecContent: &types.AppSpecContent{
				Content: aws.String(req.Content),
				Sha256:  aws.String(req.Sha256),
			},
		},
	}
	if req.Description != "" {
		input.Description = aws.String(req.Description)
	}

	start := time.Now()
	out, err := c.api.CreateDeployment(ctx, input)
	metrics.RecordAWSCall("codedeploy", "CreateDeployment", start, err)
	if err != nil {
		return "", &DeploymentSubmissionError{Application: req.Application, Group: req.Group, Err: err}
	}
	return aws.ToString(out.DeploymentId), nil
}

func (c *CodeDeployClient) DeploymentStatus(ctx context.Context, deploymentID string) (types.DeploymentStatus, error) {
	start := time.Now()
	out, err := c.api.GetDeployment(ctx, &codedeploy.GetDeploymentInput{
		DeploymentId: aws.String(deploymentID),
	})
	metrics.RecordAWSCall("codedeploy", "GetDeployment", start, err)
	if err != nil {
		return "", err
	}
	if out.DeploymentInfo == nil {
		return "", fmt.Errorf("deployment %s not found", deploymentID)
	}
	return out.DeploymentInfo.Status, nil
}
