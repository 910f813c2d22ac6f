package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/gpuws/internal/aws/fakeec2"
	gpuconfig "github.com/vietdv277/gpuws/internal/config"
)

func TestProvisionNetwork(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.ProvisionNetwork(ctx))

	want := []string{
		"CreateVpc",
		"ModifyVpcAttribute",
		"CreateSecurityGroup",
		"AuthorizeSecurityGroupIngress",
		"CreateInternetGateway",
		"AttachInternetGateway",
	}
	if diff := cmp.Diff(want, fake.Mutations()); diff != "" {
		t.Errorf("mutation order mismatch (-want +got):\n%s", diff)
	}

	vpcID, err := c.VPCID(ctx)
	require.NoError(t, err)
	assert.True(t, fake.DNSHostnames(vpcID))

	_, err = c.InternetGatewayID(ctx, vpcID)
	require.NoError(t, err)

	groupID, err := c.SecurityGroupID(ctx)
	require.NoError(t, err)

	groups, err := fake.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{groupID}})
	require.NoError(t, err)
	require.Len(t, groups.SecurityGroups, 1)

	sg := groups.SecurityGroups[0]
	assert.Equal(t, "workspace-sg", aws.ToString(sg.GroupName))
	assert.Equal(t, "traffic rules over EC2 workspace", aws.ToString(sg.Description))

	var ports [][2]int32
	for _, perm := range sg.IpPermissions {
		ports = append(ports, [2]int32{aws.ToInt32(perm.FromPort), aws.ToInt32(perm.ToPort)})
		assert.Equal(t, "tcp", aws.ToString(perm.IpProtocol))
		require.Len(t, perm.IpRanges, 1)
		assert.Equal(t, "0.0.0.0/0", aws.ToString(perm.IpRanges[0].CidrIp))
	}
	assert.Equal(t, [][2]int32{{22, 22}, {80, 80}, {5000, 5005}, {8501, 8501}}, ports)
}

func TestCreateSecurityGroup_BadPortBeforeAnyCall(t *testing.T) {
	ws := gpuconfig.Default()
	ws.IngressPorts = []string{"22", "ssh"}
	c, fake := newTestClient(t, WithWorkspace(ws))

	_, err := c.CreateSecurityGroup(context.Background())
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Empty(t, fake.Calls())
}

func TestCreateSecurityGroup_NoVPC(t *testing.T) {
	c, fake := newTestClient(t)

	_, err := c.CreateSecurityGroup(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, fake.Called("CreateSecurityGroup"))
}

func TestProvisionNetwork_TwiceLeavesAmbiguousVPC(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.ProvisionNetwork(ctx))

	// The second VPC is created, then every name lookup sees two.
	err := c.ProvisionNetwork(ctx)
	assert.ErrorIs(t, err, ErrAmbiguous)
	assert.Equal(t, 2, fake.Called("CreateVpc"))

	before := len(fake.Calls())
	err = c.ProvisionSubnet(ctx)
	assert.ErrorIs(t, err, ErrAmbiguous)
	assert.ErrorContains(t, err, "VPC with name 'workspace' is ambiguous: 2 matches")
	assert.Empty(t, mutationsSince(fake, before))
}

func TestProvisionSubnet(t *testing.T) {
	c, fake := provisioned(t)
	ctx := context.Background()

	want := []string{
		"CreateSubnet",
		"ModifySubnetAttribute",
		"CreateRouteTable",
		"CreateRoute",
		"AssociateRouteTable",
	}
	if diff := cmp.Diff(want, fake.Mutations()[6:]); diff != "" {
		t.Errorf("mutation order mismatch (-want +got):\n%s", diff)
	}

	subnetID, err := c.SubnetID(ctx)
	require.NoError(t, err)

	subnets, err := fake.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{subnetID}})
	require.NoError(t, err)
	require.Len(t, subnets.Subnets, 1)
	subnet := toSubnet(subnets.Subnets[0])
	assert.Equal(t, "172.50.100.0/24", subnet.CIDR)
	assert.Equal(t, "ap-northeast-2a", subnet.AZ)
	assert.True(t, subnet.Public)
	assert.Equal(t, "public", subnet.Name)

	vpcID, err := c.VPCID(ctx)
	require.NoError(t, err)
	assert.Equal(t, vpcID, subnet.VPCID)
	igwID, err := c.InternetGatewayID(ctx, vpcID)
	require.NoError(t, err)
	rtID, err := c.RouteTableID(ctx, vpcID)
	require.NoError(t, err)

	tables, err := fake.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{RouteTableIds: []string{rtID}})
	require.NoError(t, err)
	require.Len(t, tables.RouteTables, 1)
	rt := tables.RouteTables[0]

	var defaultVia string
	for _, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == "0.0.0.0/0" {
			defaultVia = aws.ToString(r.GatewayId)
		}
	}
	assert.Equal(t, igwID, defaultVia)
	require.Len(t, rt.Associations, 1)
	assert.Equal(t, subnetID, aws.ToString(rt.Associations[0].SubnetId))
}

func TestCreateRouteTable_RequiresInternetGateway(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	_, err := c.CreateNetwork(ctx)
	require.NoError(t, err)
	_, err = c.CreateSubnet(ctx)
	require.NoError(t, err)

	_, err = c.CreateRouteTable(ctx)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.ErrorContains(t, err, "internet gateway")
	assert.Zero(t, fake.Called("CreateRouteTable"))
}

func TestCreateSubnet_InvalidOctet(t *testing.T) {
	ws := gpuconfig.Default()
	ws.SubnetThirdOctet = 300
	c, fake := newTestClient(t, WithWorkspace(ws))
	ctx := context.Background()

	_, err := c.CreateNetwork(ctx)
	require.NoError(t, err)

	_, err = c.CreateSubnet(ctx)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Zero(t, fake.Called("CreateSubnet"))
}

func TestTeardown(t *testing.T) {
	c, fake := provisioned(t)
	ctx := context.Background()

	before := len(fake.Calls())
	require.NoError(t, c.TeardownSubnet(ctx))
	require.NoError(t, c.TeardownNetwork(ctx))

	want := []string{
		"DisassociateRouteTable",
		"DeleteRouteTable",
		"DeleteSubnet",
		"DeleteSecurityGroup",
		"DetachInternetGateway",
		"DeleteInternetGateway",
		"DeleteVpc",
	}
	if diff := cmp.Diff(want, mutationsSince(fake, before)); diff != "" {
		t.Errorf("mutation order mismatch (-want +got):\n%s", diff)
	}

	_, err := c.VPCID(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisassociateRouteTable_NotAssociated(t *testing.T) {
	c, fake := provisioned(t)
	ctx := context.Background()

	require.NoError(t, c.DisassociateRouteTable(ctx))
	before := len(fake.Calls())

	err := c.DisassociateRouteTable(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Route table association of 'rt-pub' with subnet 'public' does not exist")
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, KindAssociation, lookupErr.Kind)
	assert.Empty(t, mutationsSince(fake, before))

	// the route table itself is still there
	vpcID, err := c.VPCID(ctx)
	require.NoError(t, err)
	_, err = c.RouteTableID(ctx, vpcID)
	assert.NoError(t, err)
}

func TestTeardownNetwork_BeforeSubnetIsRejected(t *testing.T) {
	c, fake := provisioned(t)

	err := c.TeardownNetwork(context.Background())
	require.Error(t, err)
	assert.True(t, IsProviderRejected(err))
	assert.Equal(t, "DependencyViolation", ProviderErrorCode(err))
	assert.Equal(t, 1, fake.Called("DeleteVpc"))
}

func TestDeleteSteps_MissingResourceFailsBeforeMutation(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Client, context.Context) error
		kind Kind
	}{
		{name: "subnet", run: (*Client).DeleteSubnet, kind: KindSubnet},
		{name: "route table", run: (*Client).DeleteRouteTable, kind: KindRouteTable},
		{name: "association", run: (*Client).DisassociateRouteTable, kind: KindSubnet},
		{name: "security group", run: (*Client).DeleteSecurityGroup, kind: KindSecurityGroup},
		{name: "internet gateway", run: (*Client).DeleteInternetGateway, kind: KindInternetGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			ctx := context.Background()

			_, err := c.CreateNetwork(ctx)
			require.NoError(t, err)
			before := len(fake.Calls())

			err = tt.run(c, ctx)
			require.ErrorIs(t, err, ErrNotFound)
			var lookupErr *LookupError
			require.ErrorAs(t, err, &lookupErr)
			assert.Equal(t, tt.kind, lookupErr.Kind)
			assert.Empty(t, mutationsSince(fake, before))
		})
	}
}

func TestDeleteNetwork_NoVPC(t *testing.T) {
	c, fake := newTestClient(t)

	err := c.DeleteNetwork(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, fake.Mutations())
}

func TestCreateNetwork_ProviderRejection(t *testing.T) {
	c, fake := newTestClient(t)
	fake.Fail["CreateVpc"] = fakeec2.APIError("VpcLimitExceeded", "The maximum number of VPCs has been reached.")

	_, err := c.CreateNetwork(context.Background())
	assert.True(t, IsProviderRejected(err))
	assert.Equal(t, "VpcLimitExceeded", ProviderErrorCode(err))
	assert.Zero(t, fake.Called("ModifyVpcAttribute"))
}
