package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/singleflight"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/debug"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/metrics"
)

const (
	initKey        = "engine"
	versionTimeout = 10 * time.Second
)

// Resolver produces the process-wide Handle. Initialize is memoised on success;
// concurrent callers share one in-flight attempt, so at most one download
// into the cache happens at a time. Failures are not memoised.
type Resolver struct {
	cfg Config

	group  singleflight.Group
	mu     sync.RWMutex
	handle *Handle

	httpClient *http.Client
	lookPath   func(string) (string, error)
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for managed downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

// WithLookPath replaces exec.LookPath for system resolution.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(r *Resolver) { r.lookPath = fn }
}

func NewResolver(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		lookPath:   exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration after defaults.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Current returns the memoised handle, or nil before a successful Initialize.
func (r *Resolver) Current() *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handle
}

// Initialize resolves and validates the engine. A cancelled ctx abandons the
// wait, but the shared attempt keeps running for the other callers.
func (r *Resolver) Initialize(ctx context.Context) (*Handle, error) {
	if h := r.Current(); h != nil {
		return h, nil
	}

	ch := r.group.DoChan(initKey, func() (interface{}, error) {
		if h := r.Current(); h != nil {
			return h, nil
		}
		h, err := r.resolve(context.WithoutCancel(ctx))
		if err != nil {
			metrics.RecordEngineResolution("", metrics.OutcomeError)
			return nil, err
		}
		r.mu.Lock()
		r.handle = h
		r.mu.Unlock()
		metrics.RecordEngineResolution(string(h.Source), metrics.OutcomeSuccess)
		debug.LogEngine("resolved %s %s (%s)\n", h.Path, h.Version, h.Source)
		return h, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		kind := apperrors.KindInternal
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = apperrors.KindEngineTimeout
		}
		return nil, apperrors.Wrap(kind, "engine.initialize", ctx.Err(), "engine initialization abandoned")
	}
}

// Reset drops the memoised handle; the next Initialize resolves again.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.handle = nil
	r.mu.Unlock()
	r.group.Forget(initKey)
}

// Invoke initialises lazily and runs the engine. It lets a Resolver stand in
// wherever a Handle is expected.
func (r *Resolver) Invoke(ctx context.Context, inv Invocation) (*Output, error) {
	h, err := r.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	return h.Invoke(ctx, inv)
}

// attempts collects why candidates were skipped so the final error explains itself.
type attempts struct {
	missing  []string
	rejected []string
}

func (a *attempts) diagnostic() string {
	var b strings.Builder
	for _, m := range a.missing {
		b.WriteString("not found: " + m + "\n")
	}
	for _, m := range a.rejected {
		b.WriteString("rejected: " + m + "\n")
	}
	return strings.TrimSpace(b.String())
}

func (r *Resolver) resolve(ctx context.Context) (*Handle, error) {
	var tried attempts

	var h *Handle
	switch r.cfg.Mode {
	case ModeSystem:
		h = r.resolveSystem(ctx, &tried)
	case ModeManaged:
		h = r.resolveManaged(ctx, &tried)
	case ModeAuto:
		if r.cfg.BinaryPath != "" {
			h = r.resolveSystem(ctx, &tried)
			break
		}
		if h = r.resolveManaged(ctx, &tried); h == nil {
			h = r.resolveSystem(ctx, &tried)
		}
	default:
		return nil, apperrors.Newf(apperrors.KindConfig, "engine.initialize", "unknown engine mode %q", r.cfg.Mode)
	}
	if h != nil {
		return h, nil
	}

	if len(tried.rejected) > 0 {
		return nil, apperrors.Newf(apperrors.KindEngineIncompatible, "engine.initialize",
			"no compatible ast-grep found (need >= %s)", r.cfg.MinVersion).WithDiagnostic(tried.diagnostic())
	}
	return nil, apperrors.New(apperrors.KindEngineNotFound, "engine.initialize",
		"ast-grep not found; install it or enable managed downloads").WithDiagnostic(tried.diagnostic())
}

func (r *Resolver) resolveSystem(ctx context.Context, tried *attempts) *Handle {
	var candidates []string
	if r.cfg.BinaryPath != "" {
		p, err := r.explicitBinary()
		if err != nil {
			tried.missing = append(tried.missing, fmt.Sprintf("%s: %v", r.cfg.BinaryPath, err))
			return nil
		}
		candidates = append(candidates, p)
	} else {
		for _, name := range binaryNames {
			p, err := r.lookPath(name)
			if err != nil {
				tried.missing = append(tried.missing, name+" on PATH")
				continue
			}
			candidates = append(candidates, p)
		}
	}

	for _, p := range candidates {
		if h := r.tryCandidate(ctx, p, SourceSystem, tried); h != nil {
			return h
		}
	}
	return nil
}

// explicitBinary resolves a configured binary: a path is used as is, a bare
// name is looked up on PATH.
func (r *Resolver) explicitBinary() (string, error) {
	p := r.cfg.BinaryPath
	if !strings.ContainsRune(p, filepath.Separator) && !strings.ContainsRune(p, '/') {
		return r.lookPath(p)
	}
	if !isRegularFile(p) {
		return "", os.ErrNotExist
	}
	return p, nil
}

func (r *Resolver) resolveManaged(ctx context.Context, tried *attempts) *Handle {
	for _, p := range bundledCandidates(r.cfg.BundledDir) {
		if !isRegularFile(p) {
			continue
		}
		if h := r.tryCandidate(ctx, p, SourceManaged, tried); h != nil {
			return h
		}
	}

	if r.cfg.CacheDir == "" {
		tried.missing = append(tried.missing, "managed cache (no cache directory)")
		return nil
	}
	cached := cachePath(r.cfg.CacheDir, r.cfg.Version)
	if isRegularFile(cached) {
		if h := r.tryCandidate(ctx, cached, SourceManaged, tried); h != nil {
			return h
		}
	} else {
		tried.missing = append(tried.missing, cached)
	}

	if !r.cfg.AllowDownload {
		return nil
	}
	triple, err := currentTriple()
	if err != nil {
		tried.missing = append(tried.missing, err.Error())
		return nil
	}
	url := assetURL(r.cfg.DownloadBaseURL, r.cfg.Version, triple)
	if err := download(ctx, r.httpClient, url, cached); err != nil {
		debug.LogEngine("managed download failed: %v\n", err)
		tried.missing = append(tried.missing, err.Error())
		return nil
	}
	return r.tryCandidate(ctx, cached, SourceManaged, tried)
}

func (r *Resolver) tryCandidate(ctx context.Context, path string, source Source, tried *attempts) *Handle {
	ver, err := r.validate(ctx, path)
	if err != nil {
		debug.LogEngine("candidate %s rejected: %v\n", path, err)
		tried.rejected = append(tried.rejected, fmt.Sprintf("%s: %v", path, err))
		return nil
	}
	return NewHandle(path, ver, source, r.cfg.Timeout, r.cfg.Env)
}

// validate runs `<path> --version` and enforces MinVersion.
func (r *Resolver) validate(ctx context.Context, path string) (string, error) {
	probe := NewHandle(path, "", "", versionTimeout, r.cfg.Env)
	out, err := probe.Invoke(ctx, Invocation{Op: "version", Args: []string{"--version"}})
	if err != nil {
		return "", err
	}
	got, err := parseVersionOutput(string(out.Stdout))
	if err != nil {
		return "", err
	}
	minimum, err := canonicalVersion(r.cfg.MinVersion)
	if err != nil {
		return "", fmt.Errorf("bad minimum version: %w", err)
	}
	if semver.Compare(got, minimum) < 0 {
		return "", fmt.Errorf("version %s is older than %s", displayVersion(got), displayVersion(minimum))
	}
	return displayVersion(got), nil
}
