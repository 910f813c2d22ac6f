package aws

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// anywhere is the source range of every ingress rule
const anywhere = "0.0.0.0/0"

// IngressRule is an inclusive TCP port range open to the internet
type IngressRule struct {
	FromPort int32
	ToPort   int32
}

// Description returns the human readable rule description sent to EC2
func (r IngressRule) Description() string {
	if r.FromPort == r.ToPort {
		return fmt.Sprintf("allow any connection attempt on port %d", r.FromPort)
	}
	return fmt.Sprintf("allow any connection attempt on port %d to %d (inclusive)", r.FromPort, r.ToPort)
}

// ParseIngressPort parses "22" or "5000-5005" into a rule.
func ParseIngressPort(token string) (IngressRule, error) {
	if port, err := parsePort(token); err == nil {
		return IngressRule{FromPort: port, ToPort: port}, nil
	}

	from, to, ok := strings.Cut(token, "-")
	if !ok {
		return IngressRule{}, fmt.Errorf("%w: ingress port should be either integer or contain '-' as separator; got '%s'", ErrInvalidFormat, token)
	}

	fromPort, err := parsePort(from)
	if err != nil {
		return IngressRule{}, fmt.Errorf("%w: ingress port range '%s' has a non-integer start", ErrInvalidFormat, token)
	}
	toPort, err := parsePort(to)
	if err != nil {
		return IngressRule{}, fmt.Errorf("%w: ingress port range '%s' has a non-integer end", ErrInvalidFormat, token)
	}

	return IngressRule{FromPort: fromPort, ToPort: toPort}, nil
}

// ParseIngressPorts parses every token, stopping at the first bad one
func ParseIngressPorts(tokens []string) ([]IngressRule, error) {
	rules := make([]IngressRule, 0, len(tokens))
	for _, token := range tokens {
		rule, err := ParseIngressPort(token)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parsePort(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func toIPPermissions(rules []IngressRule) []ec2types.IpPermission {
	perms := make([]ec2types.IpPermission, 0, len(rules))
	for _, r := range rules {
		perms = append(perms, ec2types.IpPermission{
			FromPort:   aws.Int32(r.FromPort),
			ToPort:     aws.Int32(r.ToPort),
			IpProtocol: aws.String("tcp"),
			IpRanges: []ec2types.IpRange{
				{
					CidrIp:      aws.String(anywhere),
					Description: aws.String(r.Description()),
				},
			},
		})
	}
	return perms
}
