package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestImage_NewestWins(t *testing.T) {
	c, fake := newTestClient(t)
	fake.Images = append(fake.Images,
		// Newer but outside the name pattern.
		dlImage("ami-pytorch", "Deep Learning AMI GPU PyTorch 1.13.1 (Ubuntu 20.04) 20230401", "2023-04-01T08:00:00.000Z"),
		// Newer but owned by someone else.
		func() ec2types.Image {
			img := dlImage("ami-thirdparty", "Deep Learning AMI GPU TensorFlow 2.11.2 (Ubuntu 20.04) 20230501", "2023-05-01T08:00:00.000Z")
			img.ImageOwnerAlias = nil
			img.OwnerId = aws.String("111122223333")
			return img
		}(),
	)

	img, err := c.LatestImage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ami-new", img.ID)
	assert.True(t, img.CreationDate.Equal(time.Date(2023, 3, 24, 8, 0, 0, 0, time.UTC)))
}

func TestLatestImage_SkipsUnavailableAndDeprecated(t *testing.T) {
	c, fake := newTestClient(t)

	pending := dlImage("ami-pending", "Deep Learning AMI GPU TensorFlow 2.11.1 (Ubuntu 20.04) 20230601", "2023-06-01T08:00:00.000Z")
	pending.State = ec2types.ImageStatePending
	deprecated := dlImage("ami-deprecated", "Deep Learning AMI GPU TensorFlow 2.11.1 (Ubuntu 20.04) 20230701", "2023-07-01T08:00:00.000Z")
	deprecated.DeprecationTime = aws.String("2023-08-01T00:00:00.000Z")
	fake.Images = append(fake.Images, pending, deprecated)

	img, err := c.LatestImage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ami-new", img.ID)
}

func TestLatestImage_NoMatch(t *testing.T) {
	c, fake := newTestClient(t)
	fake.Images = nil

	_, err := c.LatestImage(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "Deep Learning AMI GPU TensorFlow")
}

func TestToImage_BadCreationDate(t *testing.T) {
	img := toImage(ec2types.Image{ImageId: aws.String("ami-1"), CreationDate: aws.String("yesterday")})
	assert.Equal(t, "ami-1", img.ID)
	assert.True(t, img.CreationDate.IsZero())
}
