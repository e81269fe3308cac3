package cmd

import (
	"context"
	"os"

	instagrab "github.com/perpetuallyhorni/instagrab/internal"
	"github.com/perpetuallyhorni/instagrab/pkg/export"
	"github.com/perpetuallyhorni/instagrab/pkg/storage"
	"github.com/spf13/cobra"
)

// queryCmd prints stored posts matching the given filters as JSON.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print stored posts matching the filters as JSON.",
	Long: `Print stored posts matching the filters as JSON, newest first.
Filters are combined; without any filter every post is printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, tag, err := queryFilter(cmd)
		if err != nil {
			return err
		}
		posts, err := findPosts(cmd.Context(), database, filter, tag)
		if err != nil {
			return err
		}
		docs, err := export.NewProjector(database).Project(cmd.Context(), posts)
		if err != nil {
			return err
		}
		data, err := export.Encode(docs)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func queryFilter(cmd *cobra.Command) (storage.PostFilter, string, error) {
	var filter storage.PostFilter
	filter.Profile, _ = cmd.Flags().GetString("profile")
	filter.CaptionContains, _ = cmd.Flags().GetString("caption")
	if s, _ := cmd.Flags().GetString("status"); s != "" {
		status, err := storage.ParseStatus(s)
		if err != nil {
			return filter, "", err
		}
		filter.Status = status
	}
	tag, _ := cmd.Flags().GetString("tag")
	return filter, tag, nil
}

// findPosts runs the tag lookup when a tag is given and narrows its result
// with the remaining filters; otherwise the filter query is used directly.
func findPosts(ctx context.Context, store storage.Reader, filter storage.PostFilter, tag string) ([]storage.Post, error) {
	if instagrab.NormalizeTag(tag) == "" {
		return store.QueryPosts(ctx, filter)
	}
	posts, err := store.QueryPostsByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	matched := posts[:0]
	for _, p := range posts {
		if filter.Matches(p) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func init() {
	queryCmd.Flags().String("profile", "", "Only posts of this profile")
	queryCmd.Flags().String("status", "", `Only posts with this status ("saved", "failed", "removed")`)
	queryCmd.Flags().String("caption", "", "Only posts whose caption contains this text")
	queryCmd.Flags().String("tag", "", "Only posts with this hashtag")
}
