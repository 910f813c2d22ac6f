package types

// VPC is the workspace network as created or described
type VPC struct {
	ID   string
	Name string
	CIDR string
}

// Subnet is the public workspace subnet
type Subnet struct {
	ID     string
	Name   string
	VPCID  string
	CIDR   string
	AZ     string
	Public bool // instances get a public IP on launch
}
