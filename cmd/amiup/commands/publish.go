package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amiup/amiup/internal/config"
	"github.com/amiup/amiup/pkg/compute"
	"github.com/amiup/amiup/pkg/db"
	"github.com/amiup/amiup/pkg/descriptor"
	"github.com/amiup/amiup/pkg/errors"
	"github.com/amiup/amiup/pkg/pipeline"
	"github.com/amiup/amiup/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/superfly/fsm"
)

var publishCmd = &cobra.Command{
	Use:   "publish <image-descriptor>",
	Short: "Upload, import, register and replicate a disk image",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	// Cancellation propagates through every provider wait and every
	// in-flight region copy; partially created remote resources are
	// recovered by the next run's idempotency checks.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if cfg.Debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	desc, err := descriptor.Load(args[0])
	if err != nil {
		return errors.Wrap(err, "descriptor load failed")
	}

	imageName := desc.ImageName(cfg.Prefix, cfg.RunID)
	slog.Info("publish_start", "image_name", imageName, "bucket", cfg.Bucket,
		"copy_to_regions", cfg.CopyToRegions, "public", cfg.Public)

	if err := ensureDirectories(cfg.DBPath, cfg.FSMDBPath); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.DBPath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	s3Client, err := storage.NewClient(ctx, cfg.Bucket, cfg.Region)
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	ec2Client, err := compute.NewClient(ctx, cfg.Region)
	if err != nil {
		return errors.Wrap(err, "EC2 client failed")
	}

	regional := func(ctx context.Context, region string) (pipeline.RegionalCompute, error) {
		return compute.NewClient(ctx, region)
	}

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := pipeline.NewMachine(s3Client, ec2Client, regional, repo, cfg.MaxRetries, cfg.MaxConcurrentCopies)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}

	req := &pipeline.PublishRequest{
		Descriptor:    *desc,
		Bucket:        cfg.Bucket,
		ImageName:     imageName,
		CopyToRegions: cfg.CopyToRegions,
		Public:        cfg.Public,
	}
	resp := &pipeline.PublishResponse{}

	version, err := start(ctx, imageName, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Wrap(err, "FSM start failed")
	}

	slog.Info("fsm_started", "version", version, "execution_id", machine.ExecutionID())

	if err := manager.Wait(ctx, version); err != nil {
		return errors.Wrap(err, "publish failed")
	}

	slog.Info("publish_complete", "image_name", imageName, "image_id", resp.ImageID,
		"regions", len(resp.Images), "execution_id", machine.ExecutionID())

	out, err := json.Marshal(resp.Images)
	if err != nil {
		return errors.Wrap(err, "failed to encode region map")
	}
	fmt.Println(string(out))

	return nil
}
