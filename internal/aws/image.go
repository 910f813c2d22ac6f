package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

// LatestImage returns the most recently created available image matching
// the workspace owners and name pattern.
func (c *Client) LatestImage(ctx context.Context) (*pkgtypes.Image, error) {
	ws := c.workspace

	output, err := c.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners:            ws.ImageOwners,
		IncludeDeprecated: aws.Bool(false),
		IncludeDisabled:   aws.Bool(false),
		Filters: toEC2Filters([]Filter{
			{Name: "name", Value: ws.ImageNamePattern},
			{Name: "state", Value: string(ec2types.ImageStateAvailable)},
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe images: %w", err)
	}

	if len(output.Images) == 0 {
		return nil, fmt.Errorf("%w: no available image matches '%s'", ErrNotFound, ws.ImageNamePattern)
	}

	images := make([]pkgtypes.Image, 0, len(output.Images))
	for _, img := range output.Images {
		images = append(images, toImage(img))
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].CreationDate.After(images[j].CreationDate)
	})

	return &images[0], nil
}

// imageID returns the configured image override or the latest match
func (c *Client) imageID(ctx context.Context) (string, error) {
	if c.workspace.ImageID != "" {
		return c.workspace.ImageID, nil
	}

	img, err := c.LatestImage(ctx)
	if err != nil {
		return "", err
	}

	c.log.WithField("image_id", img.ID).Infof("selected image %s", img.Name)
	return img.ID, nil
}

func toImage(img ec2types.Image) pkgtypes.Image {
	image := pkgtypes.Image{
		ID:   deref(img.ImageId),
		Name: deref(img.Name),
	}

	if created, err := time.Parse(time.RFC3339, deref(img.CreationDate)); err == nil {
		image.CreationDate = created
	}

	return image
}
