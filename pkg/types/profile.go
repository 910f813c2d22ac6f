package types

// AWSProfile is a named profile from the shared AWS config files
type AWSProfile struct {
	Name   string
	Region string // from config file if set
	Source string // "credentials" or "config"
}
