package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"hisab/internal/adapters"
	"hisab/internal/adapters/memory"
	"hisab/internal/supabase"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SupabaseBackend:
		return f.createSupabaseBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSupabaseBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cfg := supabase.Config{URL: config.SupabaseURL, AnonKey: config.SupabaseAnonKey}
	if !cfg.IsConfigured() {
		f.logger.WarnContext(ctx, "Supabase backend is not configured, serving setup instructions",
			"has_url", config.SupabaseURL != "",
			"has_anon_key", config.SupabaseAnonKey != "")
		return &BackendResult{Configured: false}, nil
	}

	client, err := supabase.New(cfg, supabase.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Supabase backend", "url", cfg.URL)

	return &BackendResult{
		Backend:    adapters.NewSupabaseBackend(client),
		Configured: true,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend:    store,
		Configured: true,
	}, nil
}

// newHTTPClientWithPooling returns the transport used for the hosted backend:
// pooled keep-alive connections with bounded dial, TLS and header timeouts.
// There is no overall request timeout; callers bound requests with ctx.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{Transport: transport}
}
