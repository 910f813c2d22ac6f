package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"

	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

// RunInstance launches the workspace instance and waits until it is running.
// Subnet and security group must exist before anything is launched.
func (c *Client) RunInstance(ctx context.Context) (string, error) {
	ws := c.workspace

	subnetID, err := c.SubnetID(ctx)
	if err != nil {
		return "", err
	}

	groupID, err := c.SecurityGroupID(ctx)
	if err != nil {
		return "", err
	}

	imageID, err := c.imageID(ctx)
	if err != nil {
		return "", err
	}

	output, err := c.EC2.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:           aws.String(imageID),
		InstanceType:      ec2types.InstanceType(ws.InstanceType),
		KeyName:           aws.String(ws.KeyName),
		SecurityGroupIds:  []string{groupID},
		SubnetId:          aws.String(subnetID),
		MinCount:          aws.Int32(1),
		MaxCount:          aws.Int32(1),
		TagSpecifications: nameTags(ec2types.ResourceTypeInstance, ws.InstanceName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run instance: %w", err)
	}

	if len(output.Instances) == 0 {
		return "", fmt.Errorf("run instances returned no instance")
	}
	instanceID := deref(output.Instances[0].InstanceId)

	c.log.WithFields(logrus.Fields{
		"instance_id":   instanceID,
		"image_id":      imageID,
		"instance_type": ws.InstanceType,
		"subnet_id":     subnetID,
	}).Info("launched instance")

	if err := c.wait(ctx, instanceID, ec2types.InstanceStateNameRunning); err != nil {
		return instanceID, err
	}
	return instanceID, nil
}

// StartInstance starts the stopped workspace instance and waits until it is
// running.
func (c *Client) StartInstance(ctx context.Context) error {
	return c.transition(ctx, "start", ec2types.InstanceStateNameRunning, func(id string) error {
		_, err := c.EC2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// StopInstance stops the workspace instance and waits until it is stopped.
func (c *Client) StopInstance(ctx context.Context) error {
	return c.transition(ctx, "stop", ec2types.InstanceStateNameStopped, func(id string) error {
		_, err := c.EC2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// RebootInstance reboots the workspace instance and waits until it reports
// running again.
func (c *Client) RebootInstance(ctx context.Context) error {
	return c.transition(ctx, "reboot", ec2types.InstanceStateNameRunning, func(id string) error {
		_, err := c.EC2.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// TerminateInstance terminates the workspace instance and waits until it is
// terminated.
func (c *Client) TerminateInstance(ctx context.Context) error {
	return c.transition(ctx, "terminate", ec2types.InstanceStateNameTerminated, func(id string) error {
		_, err := c.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
		return err
	})
}

// transition resolves the instance, issues one state change and waits for
// target.
func (c *Client) transition(ctx context.Context, verb string, target ec2types.InstanceStateName, call func(id string) error) error {
	instanceID, err := c.InstanceID(ctx)
	if err != nil {
		return err
	}

	if err := call(instanceID); err != nil {
		return fmt.Errorf("failed to %s instance %s: %w", verb, instanceID, err)
	}
	c.log.WithField("instance_id", instanceID).Infof("requested instance %s", verb)

	return c.wait(ctx, instanceID, target)
}

// wait runs the client's waiter with the client's log fields
func (c *Client) wait(ctx context.Context, instanceID string, target ec2types.InstanceStateName) error {
	w := *c.waiter
	if w.Log == nil {
		w.Log = c.log
	}
	return w.WaitForState(ctx, c.EC2, instanceID, target)
}

// DescribeInstance returns the current view of the workspace instance.
func (c *Client) DescribeInstance(ctx context.Context) (*pkgtypes.Instance, error) {
	instanceID, err := c.InstanceID(ctx)
	if err != nil {
		return nil, err
	}

	output, err := c.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	if len(output.Reservations) == 0 || len(output.Reservations[0].Instances) == 0 {
		return nil, fmt.Errorf("%w: instance %s", ErrNotFound, instanceID)
	}

	inst := toInstance(output.Reservations[0].Instances[0])
	return &inst, nil
}

// toInstance converts an EC2 Instance to our Instance type
func toInstance(i ec2types.Instance) pkgtypes.Instance {
	inst := pkgtypes.Instance{
		ID:        deref(i.InstanceId),
		Name:      nameTag(i.Tags),
		Type:      string(i.InstanceType),
		ImageID:   deref(i.ImageId),
		KeyName:   deref(i.KeyName),
		SubnetID:  deref(i.SubnetId),
		PrivateIP: deref(i.PrivateIpAddress),
		PublicIP:  deref(i.PublicIpAddress),
		PublicDNS: deref(i.PublicDnsName),
	}

	if i.State != nil {
		inst.State = pkgtypes.InstanceState(i.State.Name)
	}

	if i.Placement != nil {
		inst.AZ = deref(i.Placement.AvailabilityZone)
	}

	if i.LaunchTime != nil {
		inst.LaunchTime = *i.LaunchTime
	}

	return inst
}
