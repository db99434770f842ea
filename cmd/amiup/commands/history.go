package commands

import (
	"fmt"

	"github.com/amiup/amiup/internal/config"
	"github.com/amiup/amiup/pkg/db"
	"github.com/amiup/amiup/pkg/errors"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [image-name]",
	Short: "Show locally journaled publications",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	if err := ensureDirectories(cfg.DBPath, ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.DBPath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	var pubs []*db.Publication
	if len(args) == 1 {
		pubs, err = repo.ListByImageName(args[0])
	} else {
		pubs, err = repo.List()
	}
	if err != nil {
		return errors.Wrap(err, "history failed")
	}

	if len(pubs) == 0 {
		fmt.Println("No publications found")
		return nil
	}

	fmt.Printf("%-45s %-15s %-22s %-22s %-20s\n", "IMAGE NAME", "REGION", "IMAGE ID", "SNAPSHOT", "CREATED")
	fmt.Println("--------------------------------------------------------------------------------------------------------------------------")

	for _, p := range pubs {
		fmt.Printf("%-45s %-15s %-22s %-22s %-20s\n",
			p.ImageName, p.Region, p.ImageID, p.SnapshotID, p.CreatedAt)
	}

	return nil
}
