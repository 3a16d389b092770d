// Package pipeline orchestrates the triage flow for one document:
// extract, normalize, validate, route, analyze, persist.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-triage/internal/analyzer"
	"github.com/sells-group/invoice-triage/internal/config"
	"github.com/sells-group/invoice-triage/internal/extractor"
	"github.com/sells-group/invoice-triage/internal/model"
	"github.com/sells-group/invoice-triage/internal/normalizer"
	"github.com/sells-group/invoice-triage/internal/router"
	"github.com/sells-group/invoice-triage/internal/store"
	"github.com/sells-group/invoice-triage/internal/validator"
)

// auditSink is implemented by stores that keep per-field provenance rows
// alongside the routing decision.
type auditSink interface {
	SaveFieldAudits(ctx context.Context, runID string, record *model.InvoiceRecord) (int64, error)
}

// Pipeline wires the triage stages together.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	extractor  extractor.Extractor
	normalizer *normalizer.Normalizer
	validator  *validator.Validator
	router     *router.Router
	analyzer   *analyzer.Analyzer
}

// New creates a Pipeline from configuration. The vendor shape registry is
// loaded from cfg.Normalizer.ShapeConfigPath when set.
func New(cfg *config.Config, st store.Store, ext extractor.Extractor) (*Pipeline, error) {
	opts := []normalizer.Option{}
	if cfg.Normalizer.ShapeConfigPath != "" {
		reg, err := normalizer.LoadShapeConfig(cfg.Normalizer.ShapeConfigPath)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load shape config")
		}
		opts = append(opts, normalizer.WithShapeRegistry(reg))
	}

	return &Pipeline{
		cfg:        cfg,
		store:      st,
		extractor:  ext,
		normalizer: normalizer.New(cfg.Pipeline.Version, opts...),
		validator:  validator.New(cfg.Validator),
		router:     router.New(cfg.Router.LowConfidenceThreshold),
		analyzer:   analyzer.New(cfg.Analyzer.CostPerPage),
	}, nil
}

// Process runs the full triage flow for a single source document. On failure
// the returned result still carries the run ID so callers can report it.
func (p *Pipeline) Process(ctx context.Context, source string) (*model.ProcessResult, error) {
	log := zap.L().With(zap.String("source", source))
	log.Info("pipeline: starting triage")
	start := time.Now()

	run, err := p.store.CreateRun(ctx, "", source)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &model.ProcessResult{RunID: run.ID}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	fail := func(stage string, stageErr error) (*model.ProcessResult, error) {
		wrapped := eris.Wrapf(stageErr, "pipeline: %s", stage)
		log.Error("pipeline: stage failed", zap.String("stage", stage), zap.Error(stageErr))
		if completeErr := p.store.CompleteRun(ctx, run.ID, &model.RunResult{
			Error:      wrapped.Error(),
			DurationMS: time.Since(start).Milliseconds(),
		}); completeErr != nil {
			log.Warn("pipeline: failed to record failure", zap.Error(completeErr))
		}
		return result, wrapped
	}

	setStatus(model.RunStatusExtracting)
	extracted, err := p.extractor.Extract(ctx, source)
	if err != nil {
		return fail("extract", err)
	}
	if docErr := p.store.UpdateRunDoc(ctx, run.ID, extracted.DocID); docErr != nil {
		log.Warn("pipeline: failed to record doc id", zap.Error(docErr))
	}
	log = log.With(zap.String("doc_id", extracted.DocID))

	setStatus(model.RunStatusNormalizing)
	record := p.normalizer.Normalize(extracted.Output, extracted.VendorName, extracted.VendorVersion)
	result.Record = record

	setStatus(model.RunStatusValidating)
	result.Validation = p.validator.Validate(record)

	setStatus(model.RunStatusRouting)
	result.Decision = p.router.Route(record, result.Validation)
	result.Insight = p.analyzer.Analyze(record, result.Validation)

	if saveErr := p.store.SaveDecision(ctx, result); saveErr != nil {
		return fail("save decision", saveErr)
	}
	if sink, ok := p.store.(auditSink); ok {
		if n, auditErr := sink.SaveFieldAudits(ctx, run.ID, record); auditErr != nil {
			log.Warn("pipeline: failed to save field audits", zap.Error(auditErr))
		} else if n > 0 {
			log.Debug("pipeline: field audits saved", zap.Int64("rows", n))
		}
	}

	runResult := &model.RunResult{
		Outcome:         result.Decision.Outcome,
		ReasonCodes:     result.Decision.ReasonCodes,
		ConfidenceScore: result.Decision.ConfidenceScore,
		ValidationPass:  result.Validation.Passed,
		ErrorCount:      len(result.Validation.Errors),
		WarningCount:    len(result.Validation.Warnings),
		DurationMS:      time.Since(start).Milliseconds(),
	}
	if err := p.store.CompleteRun(ctx, run.ID, runResult); err != nil {
		return result, eris.Wrap(err, "pipeline: complete run")
	}

	log.Info("pipeline: triage complete",
		zap.String("outcome", string(result.Decision.Outcome)),
		zap.Strings("reason_codes", result.Decision.ReasonCodes),
		zap.Float64("confidence", result.Decision.ConfidenceScore),
		zap.Int64("duration_ms", runResult.DurationMS),
	)
	return result, nil
}
