package compute

import (
	"context"
	"log/slog"
	"sort"

	"github.com/amiup/amiup/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// OtherRegions returns every enabled region except this client's own,
// fetched fresh from the provider so the replication footprint follows new
// regions as they appear.
func (c *Client) OtherRegions(ctx context.Context) ([]string, error) {
	out, err := c.api.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		slog.Error("region_list_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list regions")
	}

	var regions []string
	for _, r := range out.Regions {
		if r.RegionName == nil || *r.RegionName == c.region {
			continue
		}
		regions = append(regions, *r.RegionName)
	}
	sort.Strings(regions)

	slog.Info("region_list_complete", "source_region", c.region, "target_count", len(regions))
	return regions, nil
}
