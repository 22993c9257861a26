package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/snapshot"
	"github.com/bioindex/kbsync/internal/store"
)

var (
	snapViews          []string
	snapAllowContinue  bool
	snapDeleteExisting bool
	snapNoUpload       bool
	snapTimeout        time.Duration
	snapPrincipalDSN   string
	snapReadonlyDSN    string
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Rebuild the readonly serving snapshot and swap onto it",
	Long: `Snapshot builds a fresh readonly schema inside the principal
database, dumps it, and loads the dump into the readonly serving
database.

While the load runs, the serving layer is redirected to read from the
principal database, and the redirect is removed once the load finishes,
whether or not it succeeded. The staging schema is dropped only after a
fully successful cycle, so a failed run can be resumed with
--allow-continue.

Example:
  kbsync snapshot
  kbsync snapshot --views source_meta --views stmt_counts
  kbsync snapshot --allow-continue
  kbsync snapshot --delete-existing --timeout 6h`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringArrayVar(&snapViews, "views", nil, "readonly view to build (repeatable; default: all)")
	snapshotCmd.Flags().BoolVar(&snapAllowContinue, "allow-continue", false, "resume atop a partially built readonly schema")
	snapshotCmd.Flags().BoolVar(&snapDeleteExisting, "delete-existing", false, "drop a pre-existing readonly schema before building")
	snapshotCmd.Flags().BoolVar(&snapNoUpload, "no-upload", false, "skip the dump artifact transfer to S3")
	snapshotCmd.Flags().DurationVar(&snapTimeout, "timeout", 4*time.Hour, "total timeout for the cycle")
	snapshotCmd.Flags().StringVar(&snapPrincipalDSN, "database", "", "principal database DSN (overrides config)")
	snapshotCmd.Flags().StringVar(&snapReadonlyDSN, "readonly", "", "readonly database DSN (overrides config)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if snapPrincipalDSN != "" {
		cfg.Databases.PrincipalDSN = snapPrincipalDSN
	}
	if snapReadonlyDSN != "" {
		cfg.Databases.ReadonlyDSN = snapReadonlyDSN
	}
	if verbose {
		cfg.LogMode = "dev"
	}

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), snapTimeout)
	defer cancel()

	principal, err := store.OpenPostgres(cfg.Databases.PrincipalDSN)
	if err != nil {
		return fmt.Errorf("open principal store: %w", err)
	}
	readonly, err := store.OpenPostgres(cfg.Databases.ReadonlyDSN)
	if err != nil {
		return fmt.Errorf("open readonly store: %w", err)
	}

	redirect, err := snapshot.NewLambdaRedirect(cfg.AWS.Region, cfg.AWS.LambdaFunction, cfg.AWS.LambdaRole)
	if err != nil {
		return fmt.Errorf("prepare serving redirect: %w", err)
	}

	var uploader snapshot.Uploader
	if !snapNoUpload && cfg.AWS.Bucket != "" {
		s3up, err := snapshot.NewS3Uploader(cfg.AWS.Region, cfg.AWS.Bucket)
		if err != nil {
			return fmt.Errorf("prepare dump uploader: %w", err)
		}
		uploader = s3up
	}

	cycle := snapshot.New(principal, readonly, redirect, uploader, log)
	err = cycle.Run(ctx, snapshot.Options{
		Views:          snapViews,
		AllowContinue:  snapAllowContinue,
		DeleteExisting: snapDeleteExisting,
		SpoolDir:       cfg.Databases.SpoolDir,
	})
	if err != nil {
		return fmt.Errorf("snapshot cycle: %w", err)
	}
	return nil
}
