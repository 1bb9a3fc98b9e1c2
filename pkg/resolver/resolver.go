// Package resolver orchestrates extraction, reference resolution, and index maintenance.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/internal/repositories/edgeindex"
	"github.com/Ramsey-B/briar/internal/repositories/locatorindex"
	"github.com/Ramsey-B/briar/internal/repositories/orphan"
	"github.com/Ramsey-B/briar/pkg/cache"
	"github.com/Ramsey-B/briar/pkg/docstore"
	"github.com/Ramsey-B/briar/pkg/fingerprint"
	"github.com/Ramsey-B/briar/pkg/headers"
	"github.com/Ramsey-B/briar/pkg/initgate"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/nodes"
)

// FailurePolicy decides what a bulk page does when one document fails.
type FailurePolicy string

const (
	// FailFast aborts the page on the first error and returns the page's starting token.
	FailFast FailurePolicy = "fail_fast"
	// SkipAndLog records the failure and keeps going.
	SkipAndLog FailurePolicy = "skip_and_log"
)

// ParseFailurePolicy defaults unknown values to FailFast.
func ParseFailurePolicy(s string) FailurePolicy {
	if FailurePolicy(strings.ToLower(strings.TrimSpace(s))) == SkipAndLog {
		return SkipAndLog
	}
	return FailFast
}

const (
	DefaultParallelism = 16
	DefaultPageSize    = 100
)

// Notifier is told about index changes. Implementations must not fail the caller.
type Notifier interface {
	DocumentResolved(ctx context.Context, res models.ResolveResult)
	OrphanRecorded(ctx context.Context, o models.OrphanRecord)
	EdgesTombstoned(ctx context.Context, source models.EntityPk, tombstoned []models.ForeignKeyEdge)
	LocatorsUpdated(ctx context.Context, res models.LocatorResult)
}

// EdgeMirror projects edge changes into a secondary store such as a graph database.
type EdgeMirror interface {
	ProjectEdges(ctx context.Context, upserted, tombstoned []models.ForeignKeyEdge) error
}

type Options struct {
	Parallelism   int
	PageSize      int
	FailurePolicy FailurePolicy
	// TombstoneStaleEdges makes single-document resolution diff against the stored
	// outbound edges instead of only upserting what it currently sees.
	TombstoneStaleEdges bool
}

type Deps struct {
	Documents   docstore.Store
	Scanner     headers.Scanner
	Hasher      *fingerprint.Hasher
	Walker      *nodes.Walker
	Edges       *edgeindex.Writer
	Locators    *locatorindex.Writer
	Orphans     *orphan.Repository
	Cache       *cache.HeaderCache
	Invalidator cache.Invalidator
	Notifier    Notifier
	Mirror      EdgeMirror
	Clock       initgate.Clock
}

type Resolver struct {
	Deps
	opts   Options
	logger ectologger.Logger
}

func New(deps Deps, opts Options, logger ectologger.Logger) (*Resolver, error) {
	if deps.Documents == nil || deps.Edges == nil || deps.Locators == nil || deps.Orphans == nil {
		return nil, fmt.Errorf("resolver requires a document store and the edge, locator and orphan repositories")
	}
	if deps.Scanner == nil {
		deps.Scanner = headers.NewScanner()
	}
	if deps.Hasher == nil {
		deps.Hasher = fingerprint.NewHasher()
	}
	if deps.Clock == nil {
		deps.Clock = initgate.SystemClock{}
	}
	if deps.Walker == nil {
		deps.Walker = nodes.NewWalker(nodes.DefaultExclusions(), deps.Clock.Now)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewHeaderCache(cache.DefaultSize, cache.DefaultTTL)
	}
	if deps.Invalidator == nil {
		deps.Invalidator = cache.NewLocalInvalidator(deps.Cache)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = FailFast
	}
	return &Resolver{
		Deps:   deps,
		opts:   opts,
		logger: logger,
	}, nil
}

func (r *Resolver) mirror(ctx context.Context, upserted, tombstoned []models.ForeignKeyEdge) {
	if r.Mirror == nil || (len(upserted) == 0 && len(tombstoned) == 0) {
		return
	}
	if err := r.Mirror.ProjectEdges(ctx, upserted, tombstoned); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Failed to project edges to mirror")
	}
}

func (r *Resolver) notify(fn func(n Notifier)) {
	if r.Notifier != nil {
		fn(r.Notifier)
	}
}
