package types

import "time"

// InstanceState represents the lifecycle state of an EC2 instance
type InstanceState string

const (
	InstanceStatePending      InstanceState = "pending"
	InstanceStateRunning      InstanceState = "running"
	InstanceStateStopping     InstanceState = "stopping"
	InstanceStateStopped      InstanceState = "stopped"
	InstanceStateShuttingDown InstanceState = "shutting-down"
	InstanceStateTerminated   InstanceState = "terminated"
)

// Instance represents the workspace compute instance
type Instance struct {
	ID         string
	Name       string
	State      InstanceState
	Type       string
	ImageID    string
	KeyName    string
	SubnetID   string
	PrivateIP  string
	PublicIP   string
	PublicDNS  string
	AZ         string
	LaunchTime time.Time
}

// IsRunning returns true if the instance is running
func (i *Instance) IsRunning() bool {
	return i.State == InstanceStateRunning
}

// Image represents a machine image candidate for new instances
type Image struct {
	ID           string
	Name         string
	CreationDate time.Time
}
