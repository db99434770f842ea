package commands

import (
	"context"
	"fmt"

	"github.com/amiup/amiup/internal/config"
	"github.com/amiup/amiup/pkg/compute"
	"github.com/amiup/amiup/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List registered AMIs matching the configured prefix",
	RunE:  runImages,
}

func init() {
	rootCmd.AddCommand(imagesCmd)
}

func runImages(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	client, err := compute.NewClient(ctx, cfg.Region)
	if err != nil {
		return errors.Wrap(err, "EC2 client failed")
	}

	images, err := client.ListImagesByPrefix(ctx, cfg.Prefix)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(images) == 0 {
		fmt.Println("No images found")
		return nil
	}

	fmt.Printf("%-50s %-22s %-12s %-25s\n", "NAME", "IMAGE ID", "STATE", "CREATED")
	fmt.Println("---------------------------------------------------------------------------------------------------------------")

	for _, img := range images {
		created := aws.ToString(img.CreationDate)
		if created == "" {
			created = "-"
		}
		fmt.Printf("%-50s %-22s %-12s %-25s\n",
			aws.ToString(img.Name), aws.ToString(img.ImageId), img.State, created)
	}

	return nil
}
