package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func SnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Mirror the index to S3",
		Long:  "Push the index to S3-compatible storage or restore it into the database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Upload the current index as a new snapshot",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotPush,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Insert the latest snapshot's records into the database index",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotPull,
	})

	return cmd
}

func runSnapshotPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	deps, err := openRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer closeRuntime(deps)

	if deps.Snapshots == nil {
		return fmt.Errorf("snapshot push needs TUTOR_S3_ENDPOINT, TUTOR_S3_ACCESS_KEY_ID and TUTOR_S3_SECRET_ACCESS_KEY")
	}

	m, err := deps.Snapshots.Push(ctx, deps.Index.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to push snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pushed snapshot %s (%d chunks, dimension %d)\n", m.Version, m.Count, m.Dimension)
	return nil
}

func runSnapshotPull(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	deps, err := openRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer closeRuntime(deps)

	if deps.Snapshots == nil {
		return fmt.Errorf("snapshot pull needs TUTOR_S3_ENDPOINT, TUTOR_S3_ACCESS_KEY_ID and TUTOR_S3_SECRET_ACCESS_KEY")
	}
	if deps.Pool == nil {
		return fmt.Errorf("snapshot pull restores into the database: set TUTOR_DATABASE_URL")
	}

	records, m, err := deps.Snapshots.Pull(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull snapshot: %w", err)
	}

	added, err := deps.Index.Insert(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored snapshot %s: %d of %d chunks were new, index size %d\n",
		m.Version, added, len(records), deps.Index.Count())
	return nil
}
