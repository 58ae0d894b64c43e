package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/epubforge/novelcrawl/pkg/catalog"
	"github.com/epubforge/novelcrawl/pkg/chapter"
	"github.com/epubforge/novelcrawl/pkg/resolver"
	"github.com/epubforge/novelcrawl/pkg/storage"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog <book-id>",
	Short: "Fetch a book's catalog and resolve its chapter addresses",
	Long: `Fetch the catalog page of a book, extract its volume and chapter
structure, and repair chapter links hidden behind script placeholders by
walking the preceding chapter's pagination chain.

The resolved structure is saved as JSON alongside a raw copy of the catalog
page, ready for the download command.

Examples:
  novelcrawl catalog 4519
  novelcrawl catalog 4519 --interval 2s --jitter 3s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bookID := args[0]
		baseURL := viper.GetString("base-url")

		fetch, err := newFetcher()
		if err != nil {
			return err
		}

		store, err := storage.NewStore(viper.GetString("data-dir"), bookID)
		if err != nil {
			return err
		}

		catalogURL := fmt.Sprintf("%s/novel/%s/catalog", baseURL, bookID)
		html, err := fetch.Fetch(ctx, catalogURL)
		if err != nil {
			return fmt.Errorf("fetch catalog: %w", err)
		}
		if err := store.SaveCatalogHTML(html); err != nil {
			return err
		}

		book, err := catalog.Parse(html, bookID, baseURL)
		if err != nil {
			return err
		}

		res, err := resolver.New(fetch, chapter.NextPagePath, resolver.Config{BaseURL: baseURL})
		if err != nil {
			return err
		}
		res.ResolveAll(ctx, book)

		if err := store.SaveStructure(book); err != nil {
			return err
		}

		fmt.Printf("%s by %s\n", book.Title, book.Author)
		fmt.Printf("volumes: %d, chapters: %d, unresolved: %d\n",
			len(book.Volumes), book.ChapterCount(), book.UnresolvedCount())
		return nil
	},
}
