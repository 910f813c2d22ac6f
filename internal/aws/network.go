package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"

	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

// defaultRoute is the destination routed through the internet gateway
const defaultRoute = "0.0.0.0/0"

// CreateNetwork creates the workspace VPC and enables DNS hostnames on it.
func (c *Client) CreateNetwork(ctx context.Context) (*pkgtypes.VPC, error) {
	ws := c.workspace

	output, err := c.EC2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(ws.VPCCIDR),
		TagSpecifications: nameTags(ec2types.ResourceTypeVpc, ws.VPCName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}

	vpc := toVPC(*output.Vpc)
	_, err = c.EC2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
		VpcId:              aws.String(vpc.ID),
		EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enable DNS hostnames on VPC %s: %w", vpc.ID, err)
	}

	c.log.WithFields(logrus.Fields{"vpc_id": vpc.ID, "cidr": vpc.CIDR}).Info("created VPC")
	return &vpc, nil
}

// CreateSecurityGroup creates the workspace security group and opens the
// configured ingress ports. Ports are parsed before anything is created.
func (c *Client) CreateSecurityGroup(ctx context.Context) (string, error) {
	ws := c.workspace

	rules, err := ParseIngressPorts(ws.IngressPorts)
	if err != nil {
		return "", err
	}

	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return "", err
	}

	output, err := c.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(ws.SecurityGroupName),
		Description: aws.String(ws.SecurityGroupDescription),
		VpcId:       aws.String(vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group: %w", err)
	}
	groupID := deref(output.GroupId)

	if len(rules) > 0 {
		_, err = c.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: toIPPermissions(rules),
		})
		if err != nil {
			return "", fmt.Errorf("failed to authorize ingress on security group %s: %w", groupID, err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"group_id": groupID,
		"vpc_id":   vpcID,
		"rules":    len(rules),
	}).Info("created security group")
	return groupID, nil
}

// CreateInternetGateway creates a tagged, unattached internet gateway
func (c *Client) CreateInternetGateway(ctx context.Context) (string, error) {
	output, err := c.EC2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: nameTags(ec2types.ResourceTypeInternetGateway, c.workspace.InternetGatewayName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create internet gateway: %w", err)
	}

	igwID := deref(output.InternetGateway.InternetGatewayId)
	c.log.WithField("igw_id", igwID).Info("created internet gateway")
	return igwID, nil
}

// AttachInternetGateway attaches igwID to the workspace VPC
func (c *Client) AttachInternetGateway(ctx context.Context, igwID string) error {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return err
	}

	_, err = c.EC2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("failed to attach internet gateway %s to VPC %s: %w", igwID, vpcID, err)
	}

	c.log.WithFields(logrus.Fields{"igw_id": igwID, "vpc_id": vpcID}).Info("attached internet gateway")
	return nil
}

// CreateSubnet creates the workspace subnet in the first configured AZ of
// the region. Its /24 is derived from the VPC block and instances launched
// in it get a public address.
func (c *Client) CreateSubnet(ctx context.Context) (*pkgtypes.Subnet, error) {
	ws := c.workspace

	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return nil, err
	}

	vpc, err := c.DescribeVPC(ctx, vpcID)
	if err != nil {
		return nil, err
	}

	cidr, err := DeriveSubnetCIDR(vpc.CIDR, ws.SubnetThirdOctet)
	if err != nil {
		return nil, err
	}

	output, err := c.EC2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		CidrBlock:         aws.String(cidr),
		VpcId:             aws.String(vpcID),
		AvailabilityZone:  aws.String(c.region + ws.AvailabilityZoneSuffix),
		TagSpecifications: nameTags(ec2types.ResourceTypeSubnet, ws.SubnetName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subnet: %w", err)
	}

	subnet := toSubnet(*output.Subnet)
	_, err = c.EC2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(subnet.ID),
		MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enable public IPs on subnet %s: %w", subnet.ID, err)
	}
	subnet.Public = true

	c.log.WithFields(logrus.Fields{
		"subnet_id": subnet.ID,
		"cidr":      subnet.CIDR,
		"az":        subnet.AZ,
	}).Info("created subnet")
	return &subnet, nil
}

// CreateRouteTable creates the workspace route table with a default route
// to the VPC's internet gateway. The gateway must already be attached.
func (c *Client) CreateRouteTable(ctx context.Context) (string, error) {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return "", err
	}

	igwID, err := c.InternetGatewayID(ctx, vpcID)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%w: internet gateway attached to VPC '%s' is not created",
			ErrPrecondition, c.workspace.VPCName)
	}
	if err != nil {
		return "", err
	}

	output, err := c.EC2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(vpcID),
		TagSpecifications: nameTags(ec2types.ResourceTypeRouteTable, c.workspace.RouteTableName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := deref(output.RouteTable.RouteTableId)

	_, err = c.EC2.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(rtID),
		DestinationCidrBlock: aws.String(defaultRoute),
		GatewayId:            aws.String(igwID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add default route to route table %s: %w", rtID, err)
	}

	c.log.WithFields(logrus.Fields{"route_table_id": rtID, "igw_id": igwID}).Info("created route table")
	return rtID, nil
}

// AssociateRouteTable associates the workspace route table with the
// workspace subnet.
func (c *Client) AssociateRouteTable(ctx context.Context) (string, error) {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return "", err
	}

	subnetID, err := c.subnetIDInVPC(ctx, vpcID)
	if err != nil {
		return "", err
	}

	rtID, err := c.RouteTableID(ctx, vpcID)
	if err != nil {
		return "", err
	}

	output, err := c.EC2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(rtID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to associate route table %s with subnet %s: %w", rtID, subnetID, err)
	}

	assocID := deref(output.AssociationId)
	c.log.WithFields(logrus.Fields{
		"association_id": assocID,
		"route_table_id": rtID,
		"subnet_id":      subnetID,
	}).Info("associated route table")
	return assocID, nil
}

// DisassociateRouteTable removes the association between the workspace
// route table and the workspace subnet.
func (c *Client) DisassociateRouteTable(ctx context.Context) error {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return err
	}

	subnetID, err := c.subnetIDInVPC(ctx, vpcID)
	if err != nil {
		return err
	}

	rtID, err := c.RouteTableID(ctx, vpcID)
	if err != nil {
		return err
	}

	lookup := Lookup{
		Kind:   KindAssociation,
		Name:   c.workspace.RouteTableName,
		Target: fmt.Sprintf("subnet '%s'", c.workspace.SubnetName),
		Filters: []Filter{
			{Name: "route-table-id", Value: rtID},
			{Name: "association.subnet-id", Value: subnetID},
		},
	}
	output, err := c.EC2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{rtID},
	})
	if err != nil {
		return fmt.Errorf("failed to describe %s: %w", KindRouteTable, err)
	}

	var assocIDs []string
	for _, rt := range output.RouteTables {
		for _, assoc := range rt.Associations {
			if deref(assoc.SubnetId) == subnetID {
				assocIDs = append(assocIDs, deref(assoc.RouteTableAssociationId))
			}
		}
	}

	assocID, err := pickOne(lookup, assocIDs)
	if err != nil {
		return err
	}

	_, err = c.EC2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
		AssociationId: aws.String(assocID),
	})
	if err != nil {
		return fmt.Errorf("failed to disassociate route table: %w", err)
	}

	c.log.WithFields(logrus.Fields{"association_id": assocID, "subnet_id": subnetID}).Info("disassociated route table")
	return nil
}

// DeleteRouteTable deletes the workspace route table
func (c *Client) DeleteRouteTable(ctx context.Context) error {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return err
	}

	rtID, err := c.RouteTableID(ctx, vpcID)
	if err != nil {
		return err
	}

	_, err = c.EC2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
		RouteTableId: aws.String(rtID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete route table %s: %w", rtID, err)
	}

	c.log.WithField("route_table_id", rtID).Info("deleted route table")
	return nil
}

// DeleteSubnet deletes the workspace subnet
func (c *Client) DeleteSubnet(ctx context.Context) error {
	subnetID, err := c.SubnetID(ctx)
	if err != nil {
		return err
	}

	_, err = c.EC2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{
		SubnetId: aws.String(subnetID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete subnet %s: %w", subnetID, err)
	}

	c.log.WithField("subnet_id", subnetID).Info("deleted subnet")
	return nil
}

// DeleteSecurityGroup deletes the workspace security group
func (c *Client) DeleteSecurityGroup(ctx context.Context) error {
	groupID, err := c.SecurityGroupID(ctx)
	if err != nil {
		return err
	}

	_, err = c.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(groupID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete security group %s: %w", groupID, err)
	}

	c.log.WithField("group_id", groupID).Info("deleted security group")
	return nil
}

// DeleteInternetGateway detaches the VPC's internet gateway and deletes it
func (c *Client) DeleteInternetGateway(ctx context.Context) error {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return err
	}

	igwID, err := c.InternetGatewayID(ctx, vpcID)
	if err != nil {
		return err
	}

	_, err = c.EC2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("failed to detach internet gateway %s: %w", igwID, err)
	}

	_, err = c.EC2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete internet gateway %s: %w", igwID, err)
	}

	c.log.WithField("igw_id", igwID).Info("deleted internet gateway")
	return nil
}

// DeleteNetwork deletes the workspace VPC
func (c *Client) DeleteNetwork(ctx context.Context) error {
	vpcID, err := c.VPCID(ctx)
	if err != nil {
		return err
	}

	_, err = c.EC2.DeleteVpc(ctx, &ec2.DeleteVpcInput{
		VpcId: aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete VPC %s: %w", vpcID, err)
	}

	c.log.WithField("vpc_id", vpcID).Info("deleted VPC")
	return nil
}

// ProvisionNetwork creates the VPC, its security group and an attached
// internet gateway, in that order.
func (c *Client) ProvisionNetwork(ctx context.Context) error {
	if _, err := c.CreateNetwork(ctx); err != nil {
		return err
	}
	if _, err := c.CreateSecurityGroup(ctx); err != nil {
		return err
	}
	igwID, err := c.CreateInternetGateway(ctx)
	if err != nil {
		return err
	}
	return c.AttachInternetGateway(ctx, igwID)
}

// TeardownNetwork deletes the security group, the internet gateway and the
// VPC, in that order.
func (c *Client) TeardownNetwork(ctx context.Context) error {
	if err := c.DeleteSecurityGroup(ctx); err != nil {
		return err
	}
	if err := c.DeleteInternetGateway(ctx); err != nil {
		return err
	}
	return c.DeleteNetwork(ctx)
}

// ProvisionSubnet creates the subnet and its route table and associates
// the two.
func (c *Client) ProvisionSubnet(ctx context.Context) error {
	if _, err := c.CreateSubnet(ctx); err != nil {
		return err
	}
	if _, err := c.CreateRouteTable(ctx); err != nil {
		return err
	}
	_, err := c.AssociateRouteTable(ctx)
	return err
}

// TeardownSubnet disassociates and deletes the route table, then deletes
// the subnet.
func (c *Client) TeardownSubnet(ctx context.Context) error {
	if err := c.DisassociateRouteTable(ctx); err != nil {
		return err
	}
	if err := c.DeleteRouteTable(ctx); err != nil {
		return err
	}
	return c.DeleteSubnet(ctx)
}
