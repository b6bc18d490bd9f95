package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/internal/bootstrap"
	"github.com/OFFIS-RIT/kiwi-insure/internal/config"
	"github.com/OFFIS-RIT/kiwi-insure/internal/storage"
	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/graph"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/loader"
	fileloader "github.com/OFFIS-RIT/kiwi-insure/pkg/loader/io"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/loader/web"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger/console"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/query"

	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command. Empty values
// keep the environment configuration.
type options struct {
	store   string
	mode    string
	size    int
	overlap int
	policy  string
	debug   bool
}

// runtime is what commands operate on.
type runtime struct {
	graph  *graph.GraphClient
	search *query.SearchService
	loader loader.DocumentLoader
	close  func()
}

type opener func(ctx context.Context, opts *options) (*runtime, error)

func newRootCmd(open opener) *cobra.Command {
	opts := &options{}
	var rt *runtime

	root := &cobra.Command{
		Use:           "kgctl",
		Short:         "Build and query the insurance knowledge graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			r, err := open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			rt = r
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt != nil && rt.close != nil {
				rt.close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.store, "store", "", "graph store: neo4j, pgx or memory (default $GRAPH_STORE)")
	flags.StringVar(&opts.mode, "mode", "", "chunk mode: simple, boundary or policy (default $CHUNK_MODE)")
	flags.IntVar(&opts.size, "chunk-size", 0, "chunk size in characters (default $CHUNK_SIZE)")
	flags.IntVar(&opts.overlap, "chunk-overlap", -1, "chunk overlap in characters (default $CHUNK_OVERLAP)")
	flags.StringVar(&opts.policy, "on-parse-error", "", "skip or abort (default $EXTRACT_FAILURE_POLICY)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	get := func() *runtime { return rt }
	root.AddCommand(
		newIngestCmd(get),
		newClaimCmd(get),
		newSearchCmd(get),
		newLocalCmd(get),
		newRecommendCmd(get),
	)
	return root
}

// openRuntime builds the runtime from the environment and flags.
func openRuntime(ctx context.Context, opts *options) (*runtime, error) {
	util.LoadEnv()

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: opts.debug || util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	}))

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	aiClient, err := bootstrap.NewAIClient(cfg.AI)
	if err != nil {
		return nil, err
	}
	s, err := bootstrap.OpenStore(ctx, cfg.GraphStore, cfg, aiClient)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.GraphStore, err)
	}
	g, err := bootstrap.NewGraphClient(cfg, aiClient, s)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	return &runtime{
		graph:  g,
		search: query.NewSearchService(s),
		loader: newLoader(cfg.S3),
		close: func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				logger.Warn("Failed to close graph store", "err", err)
			}
		},
	}, nil
}

func applyFlags(cfg *config.Config, opts *options) {
	if opts.store != "" {
		cfg.GraphStore = opts.store
	}
	if opts.mode != "" {
		cfg.Chunk.Mode = opts.mode
	}
	if opts.size > 0 {
		cfg.Chunk.Size = opts.size
	}
	if opts.overlap >= 0 {
		cfg.Chunk.Overlap = opts.overlap
	}
	if opts.policy != "" {
		cfg.Extract.FailurePolicy = opts.policy
	}
}

// newLoader resolves local paths, web pages and s3://{key} references. The
// S3 client is only created when an s3 reference is loaded.
func newLoader(s3cfg config.S3Config) loader.DocumentLoader {
	mux := loader.NewMux(fileloader.NewFileLoader())
	mux.Handle(web.NewPageLoader(&http.Client{Timeout: 30 * time.Second}), "http", "https")

	var (
		once   sync.Once
		bucket *storage.Bucket
		s3Err  error
	)
	mux.Handle(loader.Func(func(ctx context.Context, ref string) ([]byte, error) {
		once.Do(func() {
			client, err := storage.NewS3Client(ctx, s3cfg)
			if err != nil {
				s3Err = err
				return
			}
			bucket = storage.NewBucket(client, s3cfg.Bucket)
		})
		if s3Err != nil {
			return nil, s3Err
		}
		return bucket.GetDocument(ctx, ref[len("s3://"):])
	}), "s3")
	return mux
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
