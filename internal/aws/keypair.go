package aws

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"
)

// privateKeyMode keeps the key readable by its owner only, as ssh requires
const privateKeyMode os.FileMode = 0o400

// KeyPath returns where the private key of the workspace key pair lives
func (c *Client) KeyPath(dir string) string {
	return filepath.Join(dir, c.workspace.KeyName+".pem")
}

// CreateKeyPair registers a new RSA key pair and saves its private key to
// <dir>/<name>.pem. An existing key file is never overwritten.
func (c *Client) CreateKeyPair(ctx context.Context, dir string) (string, error) {
	name := c.workspace.KeyName
	path := c.KeyPath(dir)

	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create key directory %s: %w", dir, err)
	}

	// The file is claimed before EC2 generates the key
	f, err := c.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, privateKeyMode)
	if err != nil {
		return "", fmt.Errorf("failed to open key file %s: %w", path, err)
	}

	output, err := c.EC2.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
		KeyName:   aws.String(name),
		KeyType:   ec2types.KeyTypeRsa,
		KeyFormat: ec2types.KeyFormatPem,
	})
	if err != nil {
		f.Close()
		if rmErr := c.fs.Remove(path); rmErr != nil {
			c.log.WithField("path", path).Warnf("failed to remove empty key file: %v", rmErr)
		}
		return "", fmt.Errorf("failed to create key pair %s: %w", name, err)
	}

	if _, err := f.WriteString(deref(output.KeyMaterial)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write key file %s: %w", path, err)
	}

	// umask may have widened the mode passed to OpenFile
	if err := c.fs.Chmod(path, privateKeyMode); err != nil {
		return "", fmt.Errorf("failed to restrict key file %s: %w", path, err)
	}

	c.log.WithFields(logrus.Fields{
		"key_name":    name,
		"fingerprint": deref(output.KeyFingerprint),
		"path":        path,
	}).Info("created key pair")
	return path, nil
}

// DeleteKeyPair removes the local private key and then the remote key pair.
// Nothing remote is touched when the local file cannot be removed.
func (c *Client) DeleteKeyPair(ctx context.Context, dir string) error {
	name := c.workspace.KeyName
	path := c.KeyPath(dir)

	if err := c.fs.Remove(path); err != nil {
		return fmt.Errorf("failed to remove key file %s: %w", path, err)
	}

	_, err := c.EC2.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil {
		c.log.WithField("key_name", name).Warnf("removed %s but the key pair is still registered", path)
		return fmt.Errorf("failed to delete key pair %s: %w", name, err)
	}

	c.log.WithFields(logrus.Fields{"key_name": name, "path": path}).Info("deleted key pair")
	return nil
}
