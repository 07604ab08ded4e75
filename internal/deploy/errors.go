package deploy

import "fmt"

// ServiceLookupError reports that the service could not be described at all.
type ServiceLookupError struct {
	Cluster string
	Service string
	Err     error
}

func (e *ServiceLookupError) Error() string {
	return fmt.Sprintf("failed to look up service %s in cluster %s: %v", e.Service, e.Cluster, e.Err)
}

func (e *ServiceLookupError) Unwrap() error { return e.Err }

// ServiceNotActiveError reports a service in a state that cannot be deployed to.
type ServiceNotActiveError struct {
	Service string
	Status  string
}

func (e *ServiceNotActiveError) Error() string {
	return fmt.Sprintf("service %s is %s; it must be ACTIVE to deploy", e.Service, e.Status)
}

// UnsupportedControllerError reports a deployment controller this tool has no
// strategy for.
type UnsupportedControllerError struct {
	Type string
}

func (e *UnsupportedControllerError) Error() string {
	return fmt.Sprintf("unsupported deployment controller %q: expected ECS or CODE_DEPLOY", e.Type)
}

// MalformedSpecError reports a required property missing from an appspec file.
type MalformedSpecError struct {
	Property string
}

func (e *MalformedSpecError) Error() string {
	return fmt.Sprintf("appspec file must include property %q", e.Property)
}

// DeploymentFailedError reports a CodeDeploy deployment reaching a terminal
// state other than success.
type DeploymentFailedError struct {
	DeploymentID string
	Status       string
}

func (e *DeploymentFailedError) Error() string {
	return fmt.Sprintf("deployment %s reached terminal status %s", e.DeploymentID, e.Status)
}
