// Package cli implements newsrankctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/services"
	"github.com/temcen/newsrank/pkg/models"
)

// Backend is the set of operations the commands drive.
type Backend interface {
	Migrate(ctx context.Context) error
	Recommend(ctx context.Context, userID uuid.UUID, limit int) (*services.RecommendationResult, error)
	BuildProfile(ctx context.Context, userID uuid.UUID) (*services.ProfileResult, error)
	Backfill(ctx context.Context, batchSize int) (int, error)
	Ingest(ctx context.Context, inputs []models.ArticleInput) (*models.IngestReport, error)
	Close() error
}

// Opener builds a Backend from the loaded configuration.
type Opener func(cfg *config.Config) (Backend, error)

type state struct {
	cfgFile string
	open    Opener
	cfg     *config.Config
}

// backend loads the configuration and opens a Backend. Callers close it.
func (s *state) backend() (Backend, error) {
	if s.cfg == nil {
		cfg, err := config.LoadFile(s.cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		s.cfg = cfg
	}
	b, err := s.open(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return b, nil
}

func NewRootCommand(open Opener) *cobra.Command {
	s := &state{open: open}

	root := &cobra.Command{
		Use:   "newsrankctl",
		Short: "Operate the newsrank recommendation engine",
		Long: `newsrankctl runs maintenance and debugging tasks against the same
PostgreSQL, Redis and embedding backends as the server.

Example usage:
  newsrankctl migrate
  newsrankctl recommend 5f0c...e1 --limit 5
  newsrankctl ingest articles.json`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (default is ./config/app.yaml)")

	root.AddCommand(
		newMigrateCommand(s),
		newRecommendCommand(s),
		newRebuildProfileCommand(s),
		newBackfillCommand(s),
		newIngestCommand(s),
	)
	return root
}

// Execute runs the command line against the real services.
func Execute() {
	if err := NewRootCommand(OpenServices).Execute(); err != nil {
		os.Exit(1)
	}
}

// withBackend opens the backend for one command and always closes it.
func withBackend(s *state, run func(cmd *cobra.Command, args []string, b Backend) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := s.backend()
		if err != nil {
			return err
		}
		defer b.Close()
		return run(cmd, args, b)
	}
}

func parseUserArg(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
