package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/temcen/newsrank/pkg/models"
)

func newMigrateCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the pgvector extension, tables and indexes",
		Args:  cobra.NoArgs,
		RunE: withBackend(s, func(cmd *cobra.Command, _ []string, b Backend) error {
			if err := b.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		}),
	}
}

func newRecommendCommand(s *state) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recommend <user-id>",
		Short: "Print the recommendation list for a user",
		Args:  userIDArg,
		RunE: withBackend(s, func(cmd *cobra.Command, args []string, b Backend) error {
			userID, _ := parseUserArg(args[0])
			result, err := b.Recommend(cmd.Context(), userID, limit)
			if err != nil {
				return fmt.Errorf("recommendation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(result.Articles) == 0 {
				fmt.Fprintln(out, "No recommendations.")
				return nil
			}
			fmt.Fprintf(out, "Strategy: %s\n\n", result.Strategy)
			for i, a := range result.Articles {
				marker := " "
				if i < result.TrendingCount {
					marker = "*"
				}
				fmt.Fprintf(out, "%2d.%s [%s] %s\n    %s (%s)\n", i+1, marker, a.Source, a.Title, a.Link, a.PublishedAt.Format(time.RFC3339))
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of articles")
	return cmd
}

func newRebuildProfileCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-profile <user-id>",
		Short: "Recompute a user's interest vector from their interactions",
		Args:  userIDArg,
		RunE: withBackend(s, func(cmd *cobra.Command, args []string, b Backend) error {
			userID, _ := parseUserArg(args[0])
			result, err := b.BuildProfile(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("profile rebuild failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), models.ProfileRebuildResponse{
				UserID:           result.UserID,
				Updated:          result.Updated,
				TotalWeight:      result.TotalWeight,
				InteractionsUsed: result.InteractionsUsed,
				Reason:           result.Reason,
			})
		}),
	}
}

func newBackfillCommand(s *state) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "backfill-embeddings",
		Short: "Embed articles stored without a vector",
		Args:  cobra.NoArgs,
		RunE: withBackend(s, func(cmd *cobra.Command, _ []string, b Backend) error {
			embedded, err := b.Backfill(cmd.Context(), batch)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d articles.\n", embedded)
			return nil
		}),
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "articles per batch (default from config)")
	return cmd
}

func newIngestCommand(s *state) *cobra.Command {
	var inputs []models.ArticleInput
	return &cobra.Command{
		Use:   "ingest <file.json>",
		Short: "Ingest articles from a JSON file",
		Long: `Ingest articles from a JSON file holding either {"articles": [...]}
or a bare array of {title, content, link, source, published_at} objects.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			var err error
			inputs, err = readArticles(args[0])
			return err
		},
		RunE: withBackend(s, func(cmd *cobra.Command, _ []string, b Backend) error {
			report, err := b.Ingest(cmd.Context(), inputs)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		}),
	}
}

// userIDArg validates a single UUID argument before any backend is opened.
func userIDArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	_, err := parseUserArg(args[0])
	return err
}

func readArticles(path string) ([]models.ArticleInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var batch models.ArticleBatchRequest
	if err := json.Unmarshal(raw, &batch); err == nil && len(batch.Articles) > 0 {
		return batch.Articles, nil
	}
	var inputs []models.ArticleInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: expected an article array or {\"articles\": [...]}", path)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s contains no articles", path)
	}
	return inputs, nil
}
