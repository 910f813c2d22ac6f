package config

import (
	"errors"
	"fmt"
	"maps"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the CLI reads.
const EnvPrefix = "GPUWS"

// DefaultRegion is used when neither a flag, the config file nor the
// environment names a region.
const DefaultRegion = "ap-northeast-2"

// Workspace describes the single GPU workspace: resource names, address
// plan, ingress ports, instance settings and polling behaviour.
type Workspace struct {
	// Profile and Region select the AWS account and region. An empty
	// profile leaves the choice to the SDK (AWS_PROFILE, default).
	Profile string `yaml:"profile,omitempty" mapstructure:"profile"`
	Region  string `yaml:"region,omitempty" mapstructure:"region"`

	VPCName                  string `yaml:"vpc_name,omitempty" mapstructure:"vpc_name"`
	VPCCIDR                  string `yaml:"vpc_cidr,omitempty" mapstructure:"vpc_cidr"`
	SecurityGroupName        string `yaml:"security_group_name,omitempty" mapstructure:"security_group_name"`
	SecurityGroupDescription string `yaml:"security_group_description,omitempty" mapstructure:"security_group_description"`
	InternetGatewayName      string `yaml:"internet_gateway_name,omitempty" mapstructure:"internet_gateway_name"`
	SubnetName               string `yaml:"subnet_name,omitempty" mapstructure:"subnet_name"`
	SubnetThirdOctet         int    `yaml:"subnet_third_octet,omitempty" mapstructure:"subnet_third_octet"`
	AvailabilityZoneSuffix   string `yaml:"availability_zone_suffix,omitempty" mapstructure:"availability_zone_suffix"`
	RouteTableName           string `yaml:"route_table_name,omitempty" mapstructure:"route_table_name"`

	// IngressPorts holds single ports ("22") or inclusive ranges ("5000-5005")
	IngressPorts []string `yaml:"ingress_ports,omitempty" mapstructure:"ingress_ports"`

	InstanceName     string   `yaml:"instance_name,omitempty" mapstructure:"instance_name"`
	InstanceType     string   `yaml:"instance_type,omitempty" mapstructure:"instance_type"`
	ImageID          string   `yaml:"image_id,omitempty" mapstructure:"image_id"`
	ImageOwners      []string `yaml:"image_owners,omitempty" mapstructure:"image_owners"`
	ImageNamePattern string   `yaml:"image_name_pattern,omitempty" mapstructure:"image_name_pattern"`

	KeyName string `yaml:"key_name,omitempty" mapstructure:"key_name"`
	KeyDir  string `yaml:"key_dir,omitempty" mapstructure:"key_dir"`
	SSHUser string `yaml:"ssh_user,omitempty" mapstructure:"ssh_user"`

	PollInterval time.Duration `yaml:"poll_interval,omitempty" mapstructure:"poll_interval"`
	// PollTimeout of zero waits forever
	PollTimeout time.Duration `yaml:"poll_timeout,omitempty" mapstructure:"poll_timeout"`
}

// Default returns the stock workspace.
func Default() Workspace {
	ws := Workspace{
		Region:                   DefaultRegion,
		VPCName:                  "workspace",
		VPCCIDR:                  "172.50.0.0/16",
		SecurityGroupDescription: "traffic rules over EC2 workspace",
		SubnetName:               "public",
		SubnetThirdOctet:         100,
		AvailabilityZoneSuffix:   "a",
		RouteTableName:           "rt-pub",
		IngressPorts:             []string{"22", "80", "5000-5005", "8501"},
		InstanceName:             "cifar10",
		InstanceType:             "g3.4xlarge",
		ImageOwners:              []string{"amazon"},
		ImageNamePattern:         "Deep Learning AMI GPU TensorFlow 2.11.? (Ubuntu 20.04) ????????",
		KeyName:                  "workspace",
		KeyDir:                   ".",
		SSHUser:                  "ubuntu",
		PollInterval:             3 * time.Second,
	}
	return ws.WithDerivedNames()
}

// WithDerivedNames fills the security group and internet gateway names from
// the VPC name when they are not set explicitly.
func (w Workspace) WithDerivedNames() Workspace {
	if w.SecurityGroupName == "" && w.VPCName != "" {
		w.SecurityGroupName = w.VPCName + "-sg"
	}
	if w.InternetGatewayName == "" && w.VPCName != "" {
		w.InternetGatewayName = w.VPCName + "-igw"
	}
	return w
}

// Validate checks the workspace for values EC2 would reject later on.
func (w Workspace) Validate() error {
	var errs []error

	required := map[string]string{
		"vpc_name":            w.VPCName,
		"security_group_name": w.SecurityGroupName,
		"subnet_name":         w.SubnetName,
		"route_table_name":    w.RouteTableName,
		"instance_name":       w.InstanceName,
		"instance_type":       w.InstanceType,
		"key_name":            w.KeyName,
	}
	for _, key := range slices.Sorted(maps.Keys(required)) {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", key))
		}
	}

	prefix, err := netip.ParsePrefix(w.VPCCIDR)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("vpc_cidr %q: %w", w.VPCCIDR, err))
	case !prefix.Addr().Is4() || prefix.Bits() != 16:
		errs = append(errs, fmt.Errorf("vpc_cidr %q must be an IPv4 /16 block", w.VPCCIDR))
	}

	if w.SubnetThirdOctet < 0 || w.SubnetThirdOctet > 255 {
		errs = append(errs, fmt.Errorf("subnet_third_octet %d is out of range", w.SubnetThirdOctet))
	}

	if w.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive"))
	}
	if w.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("poll_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// GetConfigDir returns the config directory path (~/.gpuws)
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gpuws"
	}
	return filepath.Join(home, ".gpuws")
}

// GetConfigPath returns the config file path (~/.gpuws/config.yaml)
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// SetDefaults registers every workspace default with v so that flags, env
// and the config file can override them key by key.
func SetDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("vpc_name", def.VPCName)
	v.SetDefault("vpc_cidr", def.VPCCIDR)
	// Empty so WithDerivedNames can fill them while env still overrides
	v.SetDefault("security_group_name", "")
	v.SetDefault("internet_gateway_name", "")
	v.SetDefault("security_group_description", def.SecurityGroupDescription)
	v.SetDefault("subnet_name", def.SubnetName)
	v.SetDefault("subnet_third_octet", def.SubnetThirdOctet)
	v.SetDefault("availability_zone_suffix", def.AvailabilityZoneSuffix)
	v.SetDefault("route_table_name", def.RouteTableName)
	v.SetDefault("ingress_ports", def.IngressPorts)
	v.SetDefault("instance_name", def.InstanceName)
	v.SetDefault("instance_type", def.InstanceType)
	v.SetDefault("image_owners", def.ImageOwners)
	v.SetDefault("image_name_pattern", def.ImageNamePattern)
	v.SetDefault("key_name", def.KeyName)
	v.SetDefault("key_dir", def.KeyDir)
	v.SetDefault("ssh_user", def.SSHUser)
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("poll_timeout", def.PollTimeout)
	v.SetDefault("profile", "")
	v.SetDefault("region", DefaultRegion)
}

// Load reads the workspace out of v. When configFile is empty the default
// path is tried and silently skipped if it does not exist.
func Load(v *viper.Viper, configFile string) (Workspace, error) {
	// A missing .env is the common case
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Workspace{}, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if _, err := os.Stat(GetConfigPath()); err == nil {
		v.SetConfigFile(GetConfigPath())
		if err := v.ReadInConfig(); err != nil {
			return Workspace{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var ws Workspace
	if err := v.Unmarshal(&ws); err != nil {
		return Workspace{}, fmt.Errorf("failed to parse config: %w", err)
	}
	ws = ws.WithDerivedNames()

	if err := ws.Validate(); err != nil {
		return Workspace{}, fmt.Errorf("invalid workspace config: %w", err)
	}

	return ws, nil
}

// SaveConfig writes the workspace to path as YAML
func SaveConfig(path string, ws Workspace) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
