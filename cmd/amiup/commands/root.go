package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "amiup",
	Short: "Publish locally built disk images as AMIs",
	Long:  `Uploads a disk image to S3, imports it as an EBS snapshot, registers a bootable AMI and optionally replicates it across every available region. Every stage is idempotent, so rerunning after a partial failure is safe.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket to upload the image to")
	rootCmd.PersistentFlags().String("region", "", "Source region (defaults to the ambient AWS configuration)")
	rootCmd.PersistentFlags().String("prefix", "", "Prefix to prepend to the image name")
	rootCmd.PersistentFlags().String("run-id", "", "Run id to append to the image name")
	rootCmd.PersistentFlags().Bool("copy-to-regions", false, "Replicate the image to every other available region")
	rootCmd.PersistentFlags().Bool("public", false, "Grant public launch permission")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("db-path", ".artifacts/amiup.db", "Publication journal path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm.db", "FSM BoltDB path")
	rootCmd.PersistentFlags().Int("max-concurrent-copies", 32, "Max in-flight region copies")
	rootCmd.PersistentFlags().Int("max-retries", 1, "Per-state retry budget")

	viper.BindPFlag("s3-bucket", rootCmd.PersistentFlags().Lookup("s3-bucket"))
	viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("prefix", rootCmd.PersistentFlags().Lookup("prefix"))
	viper.BindPFlag("run-id", rootCmd.PersistentFlags().Lookup("run-id"))
	viper.BindPFlag("copy-to-regions", rootCmd.PersistentFlags().Lookup("copy-to-regions"))
	viper.BindPFlag("public", rootCmd.PersistentFlags().Lookup("public"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("db-path", rootCmd.PersistentFlags().Lookup("db-path"))
	viper.BindPFlag("fsm-db-path", rootCmd.PersistentFlags().Lookup("fsm-db-path"))
	viper.BindPFlag("max-concurrent-copies", rootCmd.PersistentFlags().Lookup("max-concurrent-copies"))
	viper.BindPFlag("max-retries", rootCmd.PersistentFlags().Lookup("max-retries"))
}
