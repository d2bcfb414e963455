package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/config"
	"github.com/sells-group/prg-convert/internal/fetcher"
	"github.com/sells-group/prg-convert/internal/prgerr"
	"github.com/sells-group/prg-convert/internal/teryt"
)

var terytCmd = &cobra.Command{
	Use:   "teryt",
	Short: "Manage the TERYT TERC dictionary",
}

var terytDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the TERC dictionary archive",
	Long: `Fetches the official TERC register (voivodeships, counties, municipalities) from
the GUS TERYT service and stores it at --output. The archive can be passed to
convert --teryt-path as is.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		output, _ := cmd.Flags().GetString("output")
		url, _ := cmd.Flags().GetString("url")
		verify, _ := cmd.Flags().GetBool("verify")

		c := *cfg
		if url != "" {
			c.Teryt.URL = url
		}

		n, err := downloadTERC(ctx, &c, output)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", megabytes(n), output)

		if verify {
			d, err := teryt.Open(ctx, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dictionary holds %d units\n", d.Len())
		}
		return nil
	},
}

// newFetcher builds the downloader from the http settings.
func newFetcher(c *config.Config) fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.HTTP.UserAgent,
		Timeout:      time.Duration(c.HTTP.TimeoutSecs) * time.Second,
		MaxRetries:   c.HTTP.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}

// downloadTERC fetches the configured TERC URL into path.
func downloadTERC(ctx context.Context, c *config.Config, path string) (int64, error) {
	log := zap.L().With(zap.String("command", "teryt"))
	f := newFetcher(c)

	log.Info("downloading TERC dictionary", zap.String("url", c.Teryt.URL), zap.String("path", path))
	n, err := f.DownloadToFile(ctx, c.Teryt.URL, path)
	if err != nil {
		return n, prgerr.Output(err, "teryt: download TERC")
	}
	log.Info("TERC dictionary downloaded", zap.Int64("bytes", n))
	return n, nil
}

func init() {
	terytDownloadCmd.Flags().String("output", "terc.zip", "destination file")
	terytDownloadCmd.Flags().String("url", "", "override the configured TERC URL")
	terytDownloadCmd.Flags().Bool("verify", false, "load the downloaded file to check it parses")

	terytCmd.AddCommand(terytDownloadCmd)
	rootCmd.AddCommand(terytCmd)
}
