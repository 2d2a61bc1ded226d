package manifest

import (
	"context"
	"log/slog"

	"sodareplay/internal/logging"
)

// LogObserver logs one line per asset result and a closing summary.
func LogObserver(logger *slog.Logger) Observer {
	base := logging.NewComponentLogger(logger, "resolver")
	return func(ctx context.Context, report *Report) {
		log := logging.WithContext(ctx, base)
		for _, res := range report.Results {
			attrs := []logging.Attr{
				logging.String(logging.FieldCategory, string(res.Section)),
				logging.String(logging.FieldAssetKey, string(res.Key)),
				logging.String("outcome", string(res.Outcome)),
			}
			if res.Character != "" {
				attrs = append(attrs, logging.String("character", res.Character))
			}
			switch res.Outcome {
			case OutcomeFailed:
				logging.WarnWithContext(log, "asset fetch failed", "asset_fetch_failed",
					append(attrs,
						logging.String("error", res.Error),
						logging.String("error_kind", res.ErrorKind),
						logging.String(logging.FieldErrorHint, "retry the run once the asset endpoint is reachable"),
						logging.String(logging.FieldImpact, "asset missing from the export"),
					)...)
			case OutcomeInvalid:
				logging.WarnWithContext(log, "asset reference rejected", "asset_invalid_reference",
					append(attrs,
						logging.String("error", res.Error),
						logging.String("raw", string(res.Raw)),
						logging.String(logging.FieldErrorHint, "fix the manifest entry"),
						logging.String(logging.FieldImpact, "reference skipped"),
					)...)
			case OutcomeCancelled:
				log.Debug("asset not attempted", logging.Args(attrs...)...)
			default:
				log.Debug("asset resolved", logging.Args(append(attrs, logging.String("path", res.Path))...)...)
			}
		}
		for _, dup := range report.Duplicates {
			if dup.Distinct {
				logging.WarnWithContext(log, "distinct primitives share a key", "asset_key_collision",
					logging.String(logging.FieldAssetKey, string(dup.Key)),
					logging.Int("occurrences", dup.Occurrences),
					logging.String(logging.FieldErrorHint, "primitives are keyed by shape and size only"),
					logging.String(logging.FieldImpact, "the first descriptor in manifest order is kept"),
				)
				continue
			}
			log.Debug("duplicate asset reference merged",
				logging.String(logging.FieldAssetKey, string(dup.Key)),
				logging.Int("occurrences", dup.Occurrences))
		}
		s := report.Summary
		log.Info("manifest resolved",
			logging.String(logging.FieldEventType, "manifest_resolved"),
			logging.Int("total", s.Total),
			logging.Int("fetched", s.Fetched),
			logging.Int("skipped", s.Skipped+s.Reused),
			logging.Int("written", s.Written),
			logging.Int("failed", s.Failed),
			logging.Int("invalid", s.Invalid),
			logging.Bool("cancelled", report.Cancelled),
			logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		)
	}
}
