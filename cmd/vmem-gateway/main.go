// Command vmem-gateway serves the vector memory HTTP API in front of a
// Chroma server or an embedded SQLite store.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/vector-memory/internal/embedding"
	"github.com/rcliao/vector-memory/internal/gateway"
	"github.com/rcliao/vector-memory/internal/observe"
	"github.com/rcliao/vector-memory/internal/server"
	"github.com/rcliao/vector-memory/internal/vectordb"
)

var version = "dev"

type options struct {
	addr       string
	store      string
	sqlitePath string
	space      string
	logFormat  string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "vmem-gateway",
		Short: "Storage gateway for vector memory",
		Long: `Serves /write, /query and /list (global and project scopes) plus
/delete/document and /delete/project over HTTP.

Environment:
  VECTOR_API_ADDR     listen address (default :8080)
  VECTOR_STORE        chroma | sqlite (default chroma)
  CHROMA_URL          Chroma server (default http://localhost:8000)
  CHROMA_TENANT       Chroma tenant (default default_tenant)
  CHROMA_DATABASE     Chroma database (default default_database)
  VECTOR_SQLITE_PATH  SQLite file (default ~/.vmem/vectors.db)
  VECTOR_SPACE        l2 | cosine distance for new collections (default l2)
  EMBED_PROVIDER      ollama | openai | hash (default ollama)
  AUTH_TOKEN          bearer token; empty leaves the API open`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", envOr("VECTOR_API_ADDR", ":8080"), "Listen address")
	f.StringVar(&opts.store, "store", envOr("VECTOR_STORE", "chroma"), "Vector store backend: chroma or sqlite")
	f.StringVar(&opts.sqlitePath, "sqlite-path", envOr("VECTOR_SQLITE_PATH", defaultSQLitePath()), "SQLite database file")
	f.StringVar(&opts.space, "space", envOr("VECTOR_SPACE", vectordb.SpaceL2), "Distance space for new collections: l2 or cosine")
	f.StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every request")
	return cmd
}

func run(ctx context.Context, opts options) error {
	format, err := observe.ParseFormat(opts.logFormat)
	if err != nil {
		return err
	}
	if !vectordb.ValidSpace(opts.space) {
		return fmt.Errorf("unknown space %q (valid: l2, cosine)", opts.space)
	}
	obs := observe.NewWithFormat(os.Stderr, format, opts.verbose)
	log := obs.Log()

	db, err := openStore(opts)
	if err != nil {
		log.Error().Err(err).Str("store", opts.store).Msg("opening vector store")
		return err
	}
	defer db.Close()

	embedder, err := embedding.NewFromEnv()
	if err != nil {
		log.Error().Err(err).Msg("configuring embeddings")
		return err
	}

	token := os.Getenv("AUTH_TOKEN")
	if token == "" {
		log.Warn().Msg("AUTH_TOKEN is not set; the API is open")
	}

	srv := server.New(gateway.New(db, embedder, obs, gateway.WithSpace(opts.space)), obs, server.Options{AuthToken: token})
	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		log.Error().Err(err).Str("addr", opts.addr).Msg("listen")
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Str("store", opts.store).Str("model", embedder.Model()).Msg("gateway listening")
	return srv.Serve(ctx, ln)
}

func openStore(opts options) (vectordb.DB, error) {
	switch opts.store {
	case "chroma":
		return vectordb.NewChromaDB(vectordb.ChromaOptions{
			URL:      os.Getenv("CHROMA_URL"),
			Tenant:   os.Getenv("CHROMA_TENANT"),
			Database: os.Getenv("CHROMA_DATABASE"),
		}), nil
	case "sqlite":
		return vectordb.NewSQLiteDB(opts.sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store %q (valid: chroma, sqlite)", opts.store)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vectors.db"
	}
	return filepath.Join(home, ".vmem", "vectors.db")
}
