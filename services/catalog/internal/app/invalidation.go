package app

import (
	"context"

	"github.com/gamerneson12-art/learnhub-portal/internal/util"
	"github.com/gamerneson12-art/learnhub-portal/pkg/cache"
)

// Mutation names used for the invalidation policy and event routing.
const (
	mutationCreatePDF     = "pdf.create"
	mutationUpdatePDF     = "pdf.update"
	mutationDeletePDF     = "pdf.delete"
	mutationTrackDownload = "download.track"
	mutationBumpCounter   = "download.increment"
)

// invalidationPolicy declares, per mutation, which cached resource families
// go stale. The whole family is dropped rather than computing exact keys.
var invalidationPolicy = map[string][]cache.Tag{
	mutationCreatePDF:     {cache.TagPDFs},
	mutationUpdatePDF:     {cache.TagPDFs},
	mutationDeletePDF:     {cache.TagPDFs},
	mutationTrackDownload: {cache.TagPDFs, cache.TagDownloads},
	mutationBumpCounter:   {cache.TagPDFs},
}

// invalidate applies the policy after a mutation. Cache failures are logged
// and swallowed: a stale-read window is preferable to failing the mutation.
func (a *App) invalidate(ctx context.Context, mutation string) {
	if a.cache == nil {
		return
	}
	tags, ok := invalidationPolicy[mutation]
	if !ok {
		return
	}
	if err := a.cache.Invalidate(ctx, tags...); err != nil {
		util.LoggerFromContext(ctx).Warn("cache invalidation failed",
			"mutation", mutation, "err", err)
	}
}
