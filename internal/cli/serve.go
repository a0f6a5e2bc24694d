package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/bnfold/pkg/buildinfo"
	"github.com/matzehuels/bnfold/pkg/dag/transform"
	"github.com/matzehuels/bnfold/pkg/graph"
	"github.com/matzehuels/bnfold/pkg/httputil"
	"github.com/matzehuels/bnfold/pkg/observability"
	"github.com/matzehuels/bnfold/pkg/pipeline"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var noCache bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fold over HTTP",
		Long: `Start an HTTP server with two endpoints:

  POST /v1/fold   fold the model in the request body (JSON or msgpack)
  GET  /healthz   report liveness and build information

The response encoding follows the Accept header and defaults to the
request encoding. Pass ?refresh=true to bypass the cache lookup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Serve.Addr
			}
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(runner, c.pipelineOptions(), c.Config.Serve.MaxBodyMB<<20, c.Logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Logger.Info("listening", "addr", addr, "cache", c.Config.Cache.Backend)
		if err := srv.ListenAndServe(); !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		c.Logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// foldResponse is the body of a successful POST /v1/fold.
type foldResponse struct {
	Model     *graph.Model     `json:"model" msgpack:"model"`
	Report    transform.Report `json:"report" msgpack:"report"`
	InputHash string           `json:"input_hash" msgpack:"input_hash"`
	CacheHit  bool             `json:"cache_hit" msgpack:"cache_hit"`
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

type server struct {
	runner  *pipeline.Runner
	opts    pipeline.Options
	maxBody int64
}

// newServer builds the HTTP handler. Each request gets a request ID and
// is logged through observability.LogHTTPHooks.
func newServer(runner *pipeline.Runner, opts pipeline.Options, maxBody int64, logger *log.Logger) http.Handler {
	s := &server{runner: runner, opts: opts, maxBody: maxBody}

	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(httputil.Observe(observability.LogHTTPHooks{Logger: logger}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/fold", s.handleFold)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.Respond(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()}, graph.FormatJSON)
}

func (s *server) handleFold(w http.ResponseWriter, r *http.Request) {
	in, out, err := httputil.Negotiate(r)
	if err != nil {
		httputil.WriteError(w, r, err, graph.FormatJSON)
		return
	}

	m, err := graph.Read(http.MaxBytesReader(w, r.Body, s.maxBody), in)
	if err != nil {
		httputil.WriteError(w, r, err, out)
		return
	}

	opts := s.opts
	opts.Refresh = r.URL.Query().Get("refresh") == "true"
	res, err := s.runner.FoldWithCacheInfo(r.Context(), m, opts)
	if err != nil {
		httputil.WriteError(w, r, err, out)
		return
	}

	if res.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	httputil.Respond(w, http.StatusOK, foldResponse{
		Model:     res.Model,
		Report:    res.Report,
		InputHash: res.InputHash,
		CacheHit:  res.CacheHit,
	}, out)
}
