package aws

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

// DescribeVPC returns detailed information about a specific VPC
func (c *Client) DescribeVPC(ctx context.Context, vpcID string) (*pkgtypes.VPC, error) {
	output, err := c.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{vpcID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPC %s: %w", vpcID, err)
	}

	if len(output.Vpcs) == 0 {
		return nil, fmt.Errorf("%w: VPC %s", ErrNotFound, vpcID)
	}

	vpc := toVPC(output.Vpcs[0])
	return &vpc, nil
}

// DeriveSubnetCIDR fixes the third octet of an IPv4 /16 network block and
// returns the resulting /24, e.g. 172.50.0.0/16 -> 172.50.100.0/24.
func DeriveSubnetCIDR(vpcCIDR string, thirdOctet int) (string, error) {
	prefix, err := netip.ParsePrefix(vpcCIDR)
	if err != nil {
		return "", fmt.Errorf("%w: VPC CIDR '%s': %v", ErrInvalidFormat, vpcCIDR, err)
	}
	if !prefix.Addr().Is4() {
		return "", fmt.Errorf("%w: VPC CIDR '%s' is not IPv4", ErrInvalidFormat, vpcCIDR)
	}
	if thirdOctet < 0 || thirdOctet > 255 {
		return "", fmt.Errorf("%w: third octet %d is out of range", ErrInvalidFormat, thirdOctet)
	}

	b := prefix.Addr().As4()
	return fmt.Sprintf("%d.%d.%d.0/24", b[0], b[1], thirdOctet), nil
}

// nameTags builds the tag specification carrying a Name tag
func nameTags(resourceType ec2types.ResourceType, name string) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{
		{
			ResourceType: resourceType,
			Tags: []ec2types.Tag{
				{Key: aws.String("Name"), Value: aws.String(name)},
			},
		},
	}
}

// toVPC converts an EC2 VPC to our VPC type
func toVPC(v ec2types.Vpc) pkgtypes.VPC {
	return pkgtypes.VPC{
		ID:   deref(v.VpcId),
		Name: nameTag(v.Tags),
		CIDR: deref(v.CidrBlock),
	}
}

// toSubnet converts an EC2 Subnet to our Subnet type
func toSubnet(s ec2types.Subnet) pkgtypes.Subnet {
	return pkgtypes.Subnet{
		ID:     deref(s.SubnetId),
		Name:   nameTag(s.Tags),
		VPCID:  deref(s.VpcId),
		CIDR:   deref(s.CidrBlock),
		AZ:     deref(s.AvailabilityZone),
		Public: derefBool(s.MapPublicIpOnLaunch),
	}
}

func nameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if deref(tag.Key) == "Name" {
			return deref(tag.Value)
		}
	}
	return ""
}

// deref safely dereferences a string pointer
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// derefBool safely dereferences a bool pointer
func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
