package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/epubforge/novelcrawl/pkg/catalog"
	"github.com/epubforge/novelcrawl/pkg/chapter"
	"github.com/epubforge/novelcrawl/pkg/logging"
	"github.com/epubforge/novelcrawl/pkg/storage"
)

var downloadCmd = &cobra.Command{
	Use:   "download <book-id>",
	Short: "Download all chapters of a book",
	Long: `Download every resolved chapter of a previously fetched catalog.

Chapters already on disk are skipped, so an interrupted run can simply be
restarted. Unresolved chapters are reported and left for a later catalog
pass; everything else is fetched page by page at the configured pace.

Examples:
  novelcrawl download 4519
  novelcrawl download 4519 --data-dir /srv/books`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bookID := args[0]
		logger := logging.NewLogger("download")

		store, err := storage.NewStore(viper.GetString("data-dir"), bookID)
		if err != nil {
			return err
		}
		book, err := store.LoadStructure()
		if err != nil {
			return fmt.Errorf("load book structure (run `novelcrawl catalog %s` first): %w", bookID, err)
		}

		fetch, err := newFetcher()
		if err != nil {
			return err
		}
		dl := chapter.NewDownloader(fetch, 0)

		var downloaded, skipped, unresolved, failed int
		for _, volume := range book.Volumes {
			for _, ref := range volume.Chapters {
				if !ref.Resolved || ref.Address == catalog.PlaceholderAddress {
					unresolved++
					logger.Warn().
						Str("volume", volume.Name).
						Str("title", ref.Title).
						Msg("Skipping unresolved chapter")
					continue
				}
				if store.HasChapter(ref.Index) {
					skipped++
					continue
				}

				title, content, err := dl.Download(ctx, ref.Address)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed++
					logger.Error().Err(err).
						Str("volume", volume.Name).
						Str("title", ref.Title).
						Str("url", ref.Address).
						Msg("Chapter download failed")
					continue
				}
				if title == "" {
					title = ref.Title
				}
				if err := store.SaveChapter(ref.Index, title, content); err != nil {
					return err
				}
				downloaded++
			}
		}

		fmt.Printf("downloaded: %d, already present: %d, unresolved: %d, failed: %d\n",
			downloaded, skipped, unresolved, failed)
		if failed > 0 {
			return fmt.Errorf("%d chapters failed to download", failed)
		}
		return nil
	},
}
