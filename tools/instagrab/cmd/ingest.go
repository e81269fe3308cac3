package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	instagrab "github.com/perpetuallyhorni/instagrab/internal"
	"github.com/perpetuallyhorni/instagrab/pkg/client"
	"github.com/perpetuallyhorni/instagrab/pkg/network"
	"github.com/perpetuallyhorni/instagrab/pkg/storage"
	"github.com/spf13/cobra"
)

// runIngest collects the URLs from the arguments and input file and ingests them in order.
func runIngest(cmd *cobra.Command, args []string) error {
	var single string
	if len(args) > 0 {
		single = args[0]
	}
	if single == "" && cfg.InputFile == "" {
		_ = cmd.Usage()
		return errors.New("you must provide a post URL or an input file (--input-file)")
	}

	urls, err := client.CollectURLs(cfg.InputFile, single)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		console.Info("No URLs to process.")
		return nil
	}

	httpClient, err := network.NewHTTPClient(cfg.BindAddress, cfg.HTTPTimeout)
	if err != nil {
		return fmt.Errorf("error configuring network: %w", err)
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = instagrab.DefaultUserAgent
	}
	resolver := instagrab.NewAPIResolver(cfg.ResolverURL, httpClient, userAgent, logger)
	fetcher := instagrab.NewGrabFetcher(httpClient, userAgent, cfg.MinFreeBytes())

	appClient, err := client.New(&cfg.Config, database, resolver, fetcher, logger)
	if err != nil {
		return fmt.Errorf("error creating client: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.Info("Processing %d post(s), delay %gs, saving to %s", len(urls), cfg.Delay, cfg.OutputDir)
	console.StartProgress(fmt.Sprintf("Processing 1/%d: %s", len(urls), urls[0]))
	summary, err := appClient.Run(ctx, urls, func(current, total int, outcome client.Outcome) {
		reportOutcome(outcome)
		if current < total {
			console.StartProgress(fmt.Sprintf("Processing %d/%d: %s", current+1, total, urls[current]))
		}
	})
	console.StopProgress()

	console.Info("Run %s: %d committed (%d saved, %d failed), %d skipped.",
		summary.RunID, summary.Committed, summary.Saved, summary.Failed, summary.Skipped)
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted")
	}
	return err
}

// reportOutcome prints one line per processed URL.
func reportOutcome(o client.Outcome) {
	if o.State != client.StateCommitted {
		console.Error("Skipped %s: %v", o.URL, o.Err)
		return
	}
	tags := "none"
	if len(o.Tags) > 0 {
		tags = "#" + strings.Join(o.Tags, " #")
	}
	msg := fmt.Sprintf("%s/%s: %d/%d media saved to %s, hashtags: %s", o.Profile, o.ShortID, len(o.Saved), o.Attempted, o.Dir, tags)
	if o.Status == storage.StatusSaved {
		console.Success("%s", msg)
	} else {
		console.Warn("%s", msg)
	}
}
