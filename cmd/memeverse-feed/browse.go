package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/config"
	"github.com/Sanskarlajurkar07/memeverse/internal/feed"
	"github.com/Sanskarlajurkar07/memeverse/internal/logging"
	"github.com/Sanskarlajurkar07/memeverse/internal/metrics"
	"github.com/Sanskarlajurkar07/memeverse/internal/mutations"
	"github.com/Sanskarlajurkar07/memeverse/internal/projection"
	"github.com/Sanskarlajurkar07/memeverse/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultBrowseUser = "local"

type browseOptions struct {
	Filter   string
	Search   string
	Sort     string
	Page     int
	PageSize int
	UserID   string
}

func newBrowseCommand() *cobra.Command {
	options := browseOptions{}
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Load the catalog once and print a projected page as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			opened, err := openComponents(cmd.Context(), appConfig, logger, metrics.New())
			if err != nil {
				return err
			}
			defer opened.Close()

			session, err := feed.NewSession(cmd.Context(), feed.SessionConfig{
				UserID:  options.UserID,
				Fetcher: opened.fetcher,
				Log: mutations.NewLog(mutations.LogConfig{
					Store:  storage.Namespace(opened.store, options.UserID),
					Logger: logger,
				}),
				TrendingLimit: appConfig.TrendingLimit,
				Clock:         time.Now,
				Logger:        logger,
			})
			if err != nil {
				return err
			}
			if options.PageSize <= 0 {
				options.PageSize = appConfig.PageSize
			}
			return runBrowse(cmd.Context(), session, options, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&options.Filter, "filter", projection.FilterTrending, "Category filter (trending, new, classic, random)")
	cmd.Flags().StringVar(&options.Search, "search", "", "Case-insensitive title search")
	cmd.Flags().StringVar(&options.Sort, "sort", string(projection.SortLikes), "Sort key (likes, newest, comments)")
	cmd.Flags().IntVar(&options.Page, "page", 1, "Number of pages to include")
	cmd.Flags().IntVar(&options.PageSize, "page-size", 0, "Items per page (defaults to feed.page_size)")
	cmd.Flags().StringVar(&options.UserID, "user", defaultBrowseUser, "User whose likes, comments and uploads are overlaid")
	return cmd
}

// runBrowse loads the catalog of session and writes the projected page to out.
func runBrowse(ctx context.Context, session *feed.Session, options browseOptions, out io.Writer) error {
	select {
	case <-session.LoadCatalog(ctx):
	case <-ctx.Done():
		return ctx.Err()
	}
	state := session.CatalogStatus()
	if state.Status == feed.StatusFailed {
		return errors.New(state.Error)
	}

	page := projection.Project(session.AllItems(), projection.Query{
		Filter:   options.Filter,
		Search:   options.Search,
		Sort:     projection.ParseSortKey(options.Sort),
		PageSize: options.PageSize,
		Page:     options.Page,
	})
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(page); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return nil
}
