package cmd

import (
	"fmt"

	"github.com/perpetuallyhorni/instagrab/pkg/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// removeCmd marks a stored post as removed, or deletes it with --purge.
var removeCmd = &cobra.Command{
	Use:   "remove PROFILE SHORTCODE",
	Short: "Mark a stored post as removed.",
	Long: `Mark a stored post as removed. The record and its hashtags are kept;
re-ingesting the post sets its status again. With --purge the record and its
hashtag links are deleted instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profile, shortID := args[0], args[1]
		post, err := database.GetPost(ctx, profile, shortID)
		if err != nil {
			return err
		}
		if post == nil {
			return fmt.Errorf("post %s/%s not found", profile, shortID)
		}

		if purge, _ := cmd.Flags().GetBool("purge"); purge {
			if err := database.DeletePost(ctx, post.ID); err != nil {
				return err
			}
			logger.Info("post deleted", zap.Int64("post_id", post.ID), zap.String("profile", profile), zap.String("shortcode", shortID))
			console.Success("Deleted %s/%s", profile, shortID)
			return nil
		}

		if err := database.SetStatus(ctx, post.ID, storage.StatusRemoved); err != nil {
			return err
		}
		logger.Info("post marked removed", zap.Int64("post_id", post.ID), zap.String("profile", profile), zap.String("shortcode", shortID))
		console.Success("Marked %s/%s as removed", profile, shortID)
		return nil
	},
}

func init() {
	removeCmd.Flags().Bool("purge", false, "Delete the record instead of marking it removed")
}
