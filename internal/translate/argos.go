package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"clipdub/internal/config"
	"clipdub/internal/executor"
	"clipdub/internal/logging"
)

const (
	translateBinary = "argos-translate"
	packageBinary   = "argospm"

	installedCacheKey = "installed-packages"
	indexCacheKey     = "package-index-updated"
)

// ArgosBridge drives the offline bridge translation engine through its
// CLI and package manager. Installed-package listings are cached with a
// TTL so repeated tasks do not re-shell for bookkeeping.
type ArgosBridge struct {
	cfg    config.Translate
	logger *slog.Logger
	runner executor.Runner
	cache  *gocache.Cache
}

// NewArgosBridge builds the bridge engine.
func NewArgosBridge(cfg config.Translate, logger *slog.Logger, runner executor.Runner) *ArgosBridge {
	if runner == nil {
		runner = executor.NewRunner()
	}
	ttl := time.Duration(cfg.PackageCacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ArgosBridge{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "argos"),
		runner: runner,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// Available reports whether the (from, to) pair can be translated,
// installing the language-pair package on demand when enabled.
func (b *ArgosBridge) Available(ctx context.Context, from, to string) bool {
	if b.installed(ctx)[packageName(from, to)] {
		return true
	}
	if !b.cfg.InstallOnDemand {
		return false
	}

	b.updateIndex(ctx)
	b.logger.Info("installing translation package",
		logging.String("from", from),
		logging.String("to", to))
	if _, err := b.runner.Run(ctx, executor.Command{
		Name:    packageBinary,
		Args:    []string{"install", packageName(from, to)},
		Timeout: b.timeout(),
	}); err != nil {
		b.logger.Warn("package install failed", logging.Error(err))
		return false
	}
	b.cache.Delete(installedCacheKey)
	return b.installed(ctx)[packageName(from, to)]
}

// TranslateBatch translates each non-empty text through the CLI. Empty
// texts pass through unchanged. Any failure makes the whole batch
// unavailable so the caller can try the next strategy.
func (b *ArgosBridge) TranslateBatch(ctx context.Context, texts []string, from, to string) ([]string, error) {
	results := make([]string, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results = append(results, text)
			continue
		}
		res, err := b.runner.Run(ctx, executor.Command{
			Name:    translateBinary,
			Args:    []string{"--from", from, "--to", to},
			Stdin:   strings.NewReader(text),
			Timeout: b.timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("translate text #%d (%s->%s): %w", i+1, from, to, err)
		}
		results = append(results, strings.TrimRight(res.Stdout, "\n"))
	}
	return results, nil
}

// installed returns the set of installed package names, consulting the
// TTL cache first.
func (b *ArgosBridge) installed(ctx context.Context) map[string]bool {
	if cached, ok := b.cache.Get(installedCacheKey); ok {
		return cached.(map[string]bool)
	}

	packages := make(map[string]bool)
	res, err := b.runner.Run(ctx, executor.Command{
		Name:    packageBinary,
		Args:    []string{"list"},
		Timeout: b.timeout(),
	})
	if err != nil {
		b.logger.Warn("could not list installed packages", logging.Error(err))
		return packages
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if name := strings.TrimSpace(line); strings.HasPrefix(name, "translate-") {
			packages[name] = true
		}
	}
	b.cache.Set(installedCacheKey, packages, gocache.DefaultExpiration)
	return packages
}

// updateIndex refreshes the remote package index at most once per TTL.
func (b *ArgosBridge) updateIndex(ctx context.Context) {
	if _, ok := b.cache.Get(indexCacheKey); ok {
		return
	}
	if _, err := b.runner.Run(ctx, executor.Command{
		Name:    packageBinary,
		Args:    []string{"update"},
		Timeout: b.timeout(),
	}); err != nil {
		b.logger.Warn("package index refresh failed", logging.Error(err))
		return
	}
	b.cache.Set(indexCacheKey, true, gocache.DefaultExpiration)
}

func (b *ArgosBridge) timeout() time.Duration {
	return time.Duration(b.cfg.Timeout) * time.Second
}

func packageName(from, to string) string {
	return fmt.Sprintf("translate-%s_%s", from, to)
}
