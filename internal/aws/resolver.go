package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Kind names a resource type that can be looked up by name
type Kind string

const (
	KindVPC             Kind = "VPC"
	KindSecurityGroup   Kind = "Security group"
	KindInternetGateway Kind = "Internet gateway"
	KindSubnet          Kind = "Subnet"
	KindRouteTable      Kind = "Route table"
	KindInstance        Kind = "Instance"

	// KindAssociation joins a route table and a subnet. It has no lister.
	KindAssociation Kind = "Route table association"
)

// Filter is a single EC2 describe filter with one value
type Filter struct {
	Name  string
	Value string
}

// TagName filters on the Name tag
func TagName(value string) Filter {
	return Filter{Name: "tag:Name", Value: value}
}

// Lookup describes what to resolve. Name and Target are only used in error
// messages; Target names the other side of a relation such as an association.
type Lookup struct {
	Kind    Kind
	Name    string
	Target  string
	Filters []Filter
}

// lister returns the IDs of every resource of one kind matching filters
type lister func(ctx context.Context, api EC2API, filters []ec2types.Filter) ([]string, error)

var listers = map[Kind]lister{
	KindVPC:             listVPCs,
	KindSecurityGroup:   listSecurityGroups,
	KindInternetGateway: listInternetGateways,
	KindSubnet:          listSubnets,
	KindRouteTable:      listRouteTables,
	KindInstance:        listInstances,
}

// Resolve returns the ID of the single resource matching l. Every call goes
// to EC2; nothing is cached.
func (c *Client) Resolve(ctx context.Context, l Lookup) (string, error) {
	list, ok := listers[l.Kind]
	if !ok {
		return "", fmt.Errorf("no lookup for resource kind %q", l.Kind)
	}

	ids, err := list(ctx, c.EC2, toEC2Filters(l.Filters))
	if err != nil {
		return "", fmt.Errorf("failed to describe %s: %w", l.Kind, err)
	}

	return pickOne(l, ids)
}

// pickOne turns a set of matches into exactly one ID, NotFound or Ambiguous.
func pickOne(l Lookup, ids []string) (string, error) {
	if len(ids) == 1 {
		return ids[0], nil
	}
	return "", &LookupError{
		Kind:    l.Kind,
		Name:    l.Name,
		Target:  l.Target,
		Count:   len(ids),
		Filters: l.Filters,
	}
}

// parentMissing reports the child of a missing parent as missing itself,
// keeping the parent lookup as the cause. Other errors pass through.
func parentMissing(kind Kind, name string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &LookupError{Kind: kind, Name: name, Cause: err}
	}
	return err
}

// VPCID resolves the workspace VPC by its Name tag
func (c *Client) VPCID(ctx context.Context) (string, error) {
	name := c.workspace.VPCName
	return c.Resolve(ctx, Lookup{
		Kind:    KindVPC,
		Name:    name,
		Filters: []Filter{TagName(name)},
	})
}

// SecurityGroupID resolves the workspace security group by VPC and group name
func (c *Client) SecurityGroupID(ctx context.Context) (string, error) {
	name := c.workspace.SecurityGroupName
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return "", parentMissing(KindSecurityGroup, name, err)
	}

	return c.Resolve(ctx, Lookup{
		Kind: KindSecurityGroup,
		Name: name,
		Filters: []Filter{
			{Name: "vpc-id", Value: vpcID},
			{Name: "group-name", Value: name},
		},
	})
}

// InternetGatewayID resolves the gateway attached to the given VPC
func (c *Client) InternetGatewayID(ctx context.Context, vpcID string) (string, error) {
	return c.Resolve(ctx, Lookup{
		Kind:    KindInternetGateway,
		Name:    c.workspace.InternetGatewayName,
		Filters: []Filter{{Name: "attachment.vpc-id", Value: vpcID}},
	})
}

// SubnetID resolves the workspace subnet by VPC and Name tag
func (c *Client) SubnetID(ctx context.Context) (string, error) {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return "", parentMissing(KindSubnet, c.workspace.SubnetName, err)
	}
	return c.subnetIDInVPC(ctx, vpcID)
}

func (c *Client) subnetIDInVPC(ctx context.Context, vpcID string) (string, error) {
	name := c.workspace.SubnetName
	return c.Resolve(ctx, Lookup{
		Kind: KindSubnet,
		Name: name,
		Filters: []Filter{
			{Name: "vpc-id", Value: vpcID},
			TagName(name),
		},
	})
}

// RouteTableID resolves the workspace route table by VPC and Name tag
func (c *Client) RouteTableID(ctx context.Context, vpcID string) (string, error) {
	name := c.workspace.RouteTableName
	return c.Resolve(ctx, Lookup{
		Kind: KindRouteTable,
		Name: name,
		Filters: []Filter{
			{Name: "vpc-id", Value: vpcID},
			TagName(name),
		},
	})
}

// InstanceID resolves the workspace instance by Name tag and subnet.
// Terminated instances are ignored.
func (c *Client) InstanceID(ctx context.Context) (string, error) {
	name := c.workspace.InstanceName
	subnetID, err := c.SubnetID(ctx)
	if err != nil {
		return "", parentMissing(KindInstance, name, err)
	}

	return c.Resolve(ctx, Lookup{
		Kind: KindInstance,
		Name: name,
		Filters: []Filter{
			TagName(name),
			{Name: "subnet-id", Value: subnetID},
		},
	})
}

func toEC2Filters(filters []Filter) []ec2types.Filter {
	out := make([]ec2types.Filter, 0, len(filters))
	for _, f := range filters {
		out = append(out, ec2types.Filter{
			Name:   aws.String(f.Name),
			Values: []string{f.Value},
		})
	}
	return out
}

func listVPCs(ctx context.Context, api EC2API, filters []ec2types.Filter) ([]string, error) {
	output, err := api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: filters})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, v := range output.Vpcs {
		ids = append(ids, deref(v.VpcId))
	}
	return ids, nil
}

func listSecurityGroups(ctx context.Context, api EC2API, filters []ec2types.Filter) ([]string, error) {
	output, err := api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: filters})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, sg := range output.SecurityGroups {
		ids = append(ids, deref(sg.GroupId))
	}
	return ids, nil
}

func listInternetGateways(ctx context.Context, api EC2API, filters []ec2types.Filter) ([]string, error) {
	output, err := api.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{Filters: filters})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, igw := range output.InternetGateways {
		ids = append(ids, deref(igw.InternetGatewayId))
	}
	return ids, nil
}

func listSubnets(ctx context.Context, api EC2API, filters []ec2types.Filter) ([]string, error) {
	output, err := api.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: filters})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, s := range output.Subnets {
		ids = append(ids, deref(s.SubnetId))
	}
	return ids, nil
}

func listRouteTables(ctx context.Context, api EC2API, filters []ec2types.Filter) ([]string, error) {
	output, err := api.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: filters})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, rt := range output.RouteTables {
		ids = append(ids, deref(rt.RouteTableId))
	}
	return ids, nil
}

func listInstances(ctx context.Context, api EC2API, filters []ec2types.Filter) ([]string, error) {
	output, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{Filters: filters})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, reservation := range output.Reservations {
		for _, inst := range reservation.Instances {
			if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
				continue
			}
			ids = append(ids, deref(inst.InstanceId))
		}
	}
	return ids, nil
}
