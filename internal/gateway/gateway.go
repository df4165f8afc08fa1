// Package gateway assembles the schema sources into a composed schema at
// startup and serves the unified GraphQL endpoint, the exploration UI, the
// printed schema, and the operational endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jensneuse/abstractlogger"

	"github.com/commercegraph/storefront-gateway/internal/catalog"
	"github.com/commercegraph/storefront-gateway/internal/compose"
	"github.com/commercegraph/storefront-gateway/internal/config"
	"github.com/commercegraph/storefront-gateway/internal/delegate"
	"github.com/commercegraph/storefront-gateway/internal/executor"
	"github.com/commercegraph/storefront-gateway/internal/funcruntime"
	"github.com/commercegraph/storefront-gateway/internal/introspect"
	"github.com/commercegraph/storefront-gateway/internal/metric"
	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

// Version is stamped at build time.
var Version = "dev"

const baseSDL = `
type Query {
	gatewayVersion: String!
}
`

// Gateway is the assembled service. The composed schema is immutable after
// New returns; a schema change requires a restart.
type Gateway struct {
	cfg      config.Config
	log      abstractlogger.Logger
	metrics  *metric.Metrics
	composed *compose.Composed
	executor *executor.Executor
	catalog  *catalog.Client
	router   *mux.Router
}

// New loads every schema source, composes them in precedence order and wires
// the HTTP surface. Any source failure here is startup-fatal by design of the
// caller; New itself just returns the error.
func New(ctx context.Context, cfg config.Config, logger abstractlogger.Logger) (*Gateway, error) {
	metrics := metric.New()

	catalogClient := catalog.NewClient(catalog.Config{
		Addr:    cfg.CatalogAddr(),
		Timeout: cfg.CatalogTimeout,
	})

	sources := []compose.Source{
		{
			Name: "base",
			Kind: compose.KindLocal,
			SDL:  baseSDL,
			Resolvers: map[string]compose.Resolver{
				"Query.gatewayVersion": func(context.Context, reqcontext.Context, map[string]interface{}) (interface{}, error) {
					return Version, nil
				},
			},
		},
		catalog.NewSource(catalogClient),
	}

	var invoker executor.FunctionInvoker
	if len(cfg.IOPackages) > 0 {
		runtime := funcruntime.New(cfg.FunctionRegistryURL, nil)
		functionSources, err := runtime.LoadSources(ctx, cfg.IOPackages)
		if err != nil {
			catalogClient.Close()
			return nil, err
		}
		logger.Info("function packages loaded",
			abstractlogger.Int("packages", len(functionSources)),
		)
		sources = append(sources, functionSources...)
		invoker = runtime
	}

	var legacy executor.LegacyDelegator
	if cfg.LegacyGraphQLURL != "" {
		schema, err := introspect.NewClient(nil, cfg.IntrospectionRetries).Fetch(ctx, cfg.LegacyGraphQLURL)
		if err != nil {
			catalogClient.Close()
			return nil, err
		}
		logger.Info("legacy schema introspected",
			abstractlogger.String("endpoint", cfg.LegacyGraphQLURL),
		)
		sources = append(sources, compose.Source{
			Name: "legacy",
			Kind: compose.KindLegacy,
			SDL:  introspect.RenderSDL(schema),
		})
		legacy = delegate.New(cfg.LegacyGraphQLURL, nil, cfg.DelegateTimeout)
	}

	composed, err := compose.Compose(sources...)
	if err != nil {
		catalogClient.Close()
		return nil, fmt.Errorf("compose schema: %w", err)
	}

	exec := executor.New(composed, legacy, invoker)
	exec.ObserveSources(metrics)

	g := &Gateway{
		cfg:      cfg,
		log:      logger,
		metrics:  metrics,
		composed: composed,
		executor: exec,
		catalog:  catalogClient,
	}
	if err := g.routes(); err != nil {
		catalogClient.Close()
		return nil, err
	}
	return g, nil
}

func (g *Gateway) routes() error {
	router := mux.NewRouter()
	router.Use(requestID(), accessLog(g.log))

	playground, err := playgroundHandler("/graphql")
	if err != nil {
		return fmt.Errorf("configure playground: %w", err)
	}

	router.Handle("/graphql", NewGraphQLHandler(g.executor, g.log, g.metrics)).Methods(http.MethodPost)
	router.HandleFunc("/graphql/schema", g.serveSchema).Methods(http.MethodGet)
	router.HandleFunc("/playground", playground).Methods(http.MethodGet)
	router.Handle("/metrics", g.metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", g.serveHealth).Methods(http.MethodGet)

	g.router = router
	return nil
}

func (g *Gateway) serveSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(g.composed.PublicSDL))
}

func (g *Gateway) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Handler returns the routed HTTP surface.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (g *Gateway) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              g.cfg.ListenAddr(),
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.log.Info("listening",
		abstractlogger.String("addr", server.Addr),
		abstractlogger.String("playground", "/playground"),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			g.log.Error("shutdown", abstractlogger.Error(err))
		}
		err := <-serveErr
		g.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-serveErr:
		g.Close()
		return err
	}
}

// Close releases backend connections.
func (g *Gateway) Close() {
	g.catalog.Close()
}
