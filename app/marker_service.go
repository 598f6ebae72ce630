// Package app orchestrates the differential-abundance pipeline: validate,
// preprocess, fit, harmonize, filter, assemble.
package app

import (
	"context"
	"fmt"

	"gomarker/domain/contrast"
	"gomarker/domain/core"
	"gomarker/domain/marker"
	"gomarker/domain/profile"
	"gomarker/ports"
)

// ModelVariant selects the fitting strategy.
type ModelVariant string

const (
	ModelZILN ModelVariant = "ZILN" // zero-inflated log-normal feature model
	ModelZIG  ModelVariant = "ZIG"  // zero-inflated Gaussian mixture
)

// ParseModelVariant validates a model name.
func ParseModelVariant(s string) (ModelVariant, error) {
	switch ModelVariant(s) {
	case ModelZILN, ModelZIG:
		return ModelVariant(s), nil
	}
	return "", fmt.Errorf("%w: model %q", core.ErrInvalidEnum, s)
}

// AnalysisRequest defines one differential-abundance invocation.
type AnalysisRequest struct {
	Profile     *profile.Profile
	GroupColumn string

	// Contrast names the numerator and denominator groups (raw labels).
	// Mandatory for two-group factors; optional above that.
	Contrast *[2]string

	TaxaRank     string // "none", "all", or a canonical rank name
	Transform    ports.TransformMethod
	Norm         ports.NormMethod
	NormOptions  ports.NormOptions
	Model        ModelVariant
	Adjust       ports.AdjustMethod
	PValueCutoff float64

	AnalysisID core.AnalysisID // optional, generated when empty
}

// Defaults are the fallback option values applied to zero-valued request
// fields. They come from configuration; Run still validates the merged
// request, so a bad configured default surfaces as a usage error.
type Defaults struct {
	Transform    ports.TransformMethod
	Norm         ports.NormMethod
	Model        ModelVariant
	Adjust       ports.AdjustMethod
	PValueCutoff float64
}

// StandardDefaults returns the built-in toolkit defaults.
func StandardDefaults() Defaults {
	return Defaults{
		Transform:    ports.TransformIdentity,
		Norm:         ports.NormCSS,
		Model:        ModelZILN,
		Adjust:       ports.AdjustBH,
		PValueCutoff: 0.05,
	}
}

// fill backstops zero-valued defaults with the built-in ones.
func (d Defaults) fill() Defaults {
	std := StandardDefaults()
	if d.Transform == "" {
		d.Transform = std.Transform
	}
	if d.Norm == "" {
		d.Norm = std.Norm
	}
	if d.Model == "" {
		d.Model = std.Model
	}
	if d.Adjust == "" {
		d.Adjust = std.Adjust
	}
	if d.PValueCutoff == 0 {
		d.PValueCutoff = std.PValueCutoff
	}
	return d
}

// applyDefaults fills zero-valued options from the service defaults.
func (r *AnalysisRequest) applyDefaults(d Defaults) {
	if r.TaxaRank == "" {
		r.TaxaRank = string(ports.RankModeNone)
	}
	if r.Transform == "" {
		r.Transform = d.Transform
	}
	if r.Norm == "" {
		r.Norm = d.Norm
	}
	if r.Model == "" {
		r.Model = d.Model
	}
	if r.Adjust == "" {
		r.Adjust = d.Adjust
	}
	if r.PValueCutoff == 0 {
		r.PValueCutoff = d.PValueCutoff
	}
	if r.AnalysisID == "" {
		r.AnalysisID = core.AnalysisID(core.NewID())
	}
}

// MarkerService runs the pipeline against its delegated services.
type MarkerService struct {
	normalizer ports.Normalizer
	summarizer ports.Summarizer
	logNormal  ports.FeatureModelFitter
	zig        ports.ZIGFitter
	contrasts  ports.ContrastFitter
	defaults   Defaults
}

// NewMarkerService wires the pipeline with the built-in defaults.
func NewMarkerService(normalizer ports.Normalizer, summarizer ports.Summarizer,
	logNormal ports.FeatureModelFitter, zig ports.ZIGFitter, contrasts ports.ContrastFitter) *MarkerService {
	return NewMarkerServiceWithDefaults(normalizer, summarizer, logNormal, zig, contrasts, StandardDefaults())
}

// NewMarkerServiceWithDefaults wires the pipeline with configured defaults;
// zero-valued fields fall back to the built-ins.
func NewMarkerServiceWithDefaults(normalizer ports.Normalizer, summarizer ports.Summarizer,
	logNormal ports.FeatureModelFitter, zig ports.ZIGFitter, contrasts ports.ContrastFitter,
	defaults Defaults) *MarkerService {
	return &MarkerService{
		normalizer: normalizer,
		summarizer: summarizer,
		logNormal:  logNormal,
		zig:        zig,
		contrasts:  contrasts,
		defaults:   defaults.fill(),
	}
}

// Run executes one full invocation. All stages are sequential; the request's
// profile is never mutated.
func (s *MarkerService) Run(ctx context.Context, req AnalysisRequest) (*marker.Result, error) {
	req.applyDefaults(s.defaults)

	if req.Profile == nil || req.Profile.FeatureCount() == 0 {
		return nil, core.ErrEmptyProfile
	}
	if req.PValueCutoff < 0 || req.PValueCutoff > 1 {
		return nil, core.NewValidationError("pvalue_cutoff",
			fmt.Sprintf("must be within [0, 1], got %g", req.PValueCutoff))
	}
	rankSpec, err := ports.ParseRankSpec(req.TaxaRank)
	if err != nil {
		return nil, err
	}
	if _, err := ports.ParseTransformMethod(string(req.Transform)); err != nil {
		return nil, err
	}
	if _, err := ports.ParseNormMethod(string(req.Norm)); err != nil {
		return nil, err
	}
	if _, err := ParseModelVariant(string(req.Model)); err != nil {
		return nil, err
	}
	if _, err := ports.ParseAdjustMethod(string(req.Adjust)); err != nil {
		return nil, err
	}

	// Stage 1: grouping factor and contrast plan.
	gf, err := req.Profile.GroupFactor(req.GroupColumn)
	if err != nil {
		return nil, err
	}
	if req.Model == ModelZILN && gf.LevelCount() > 2 {
		return nil, fmt.Errorf("%w: factor %q has %d levels",
			core.ErrModelGroupMismatch, req.GroupColumn, gf.LevelCount())
	}

	var pair *contrast.Pair
	if req.Contrast != nil {
		p := contrast.NewPair(req.Contrast[0], req.Contrast[1])
		pair = &p
	}
	plan, err := contrast.Build(gf, pair)
	if err != nil {
		return nil, err
	}
	if plan.Pair != nil && gf.LevelCount() == 2 {
		// Denominator first: the downstream coefficient sign then reads
		// numerator minus denominator.
		if err := gf.Relevel(plan.Pair.Denominator, plan.Pair.Numerator); err != nil {
			return nil, err
		}
	}

	// Stage 2: preprocess.
	pre, err := s.preprocess(ctx, req, rankSpec)
	if err != nil {
		return nil, err
	}

	// Stages 3-4: fit and harmonize.
	records, diffMethod, err := s.fitAndHarmonize(ctx, req, gf, plan, pre)
	if err != nil {
		return nil, err
	}

	// Stage 5: filter and assemble.
	kept, fellBack := marker.FilterSignificant(records, req.PValueCutoff)
	table := marker.Assemble(kept)

	res := &marker.Result{
		AnalysisID:       req.AnalysisID,
		Table:            table,
		NormMethod:       string(req.Norm),
		DiffMethod:       diffMethod,
		FellBack:         fellBack,
		TotalFeatures:    len(records),
		SignificantCount: table.Len(),
		Normalized:       pre.normalized,
		CreatedAt:        core.Now(),
	}
	if fellBack {
		res.SignificantCount = 0
	}
	res.Fingerprint = fingerprint(req, res)
	return res, nil
}

// preprocessed carries the stage-2 outputs forward.
type preprocessed struct {
	counts     *profile.Profile // summarized counts handed to the fitters
	normalized *profile.Profile // summarized normalized counts, for the result
	scales     []float64        // per-sample scaling factors
}

func (s *MarkerService) preprocess(ctx context.Context, req AnalysisRequest, rankSpec ports.RankSpec) (*preprocessed, error) {
	transformed, err := s.normalizer.Transform(ctx, req.Profile, req.Transform)
	if err != nil {
		return nil, err
	}

	norm, err := s.normalizer.Normalize(ctx, transformed, req.Norm, req.NormOptions)
	if err != nil {
		return nil, err
	}

	scales := norm.ScaleFactors
	if scales == nil {
		// Methods without a per-sample factor still have to hand the
		// fitters a usable scale; fall back to CSS factors.
		scales, err = s.normalizer.CSSFactors(transformed, 0)
		if err != nil {
			return nil, err
		}
	}

	// Fitters take pre-normalization counts plus the scale factors.
	// Rarefying is the exception: it resamples the counts themselves.
	fitCounts := transformed
	if req.Norm == ports.NormRarefy {
		fitCounts = norm.Profile
	}

	sumCounts, err := s.summarizer.Summarize(ctx, fitCounts, rankSpec)
	if err != nil {
		return nil, err
	}
	sumNorm, err := s.summarizer.Summarize(ctx, norm.Profile, rankSpec)
	if err != nil {
		return nil, err
	}

	return &preprocessed{counts: sumCounts, normalized: sumNorm, scales: scales}, nil
}

// fitAndHarmonize dispatches on (group count, model) and maps the raw fit
// output onto the canonical record schema.
func (s *MarkerService) fitAndHarmonize(ctx context.Context, req AnalysisRequest,
	gf *profile.GroupFactor, plan *contrast.Plan, pre *preprocessed) ([]marker.Record, string, error) {

	opts := ports.FitOptions{Adjust: req.Adjust}

	if gf.LevelCount() == 2 {
		switch req.Model {
		case ModelZILN:
			rows, err := s.logNormal.FitFeatureModel(ctx, pre.counts, gf, pre.scales, opts)
			if err != nil {
				return nil, "", err
			}
			return harmonizeTwoGroup(rows, *plan.Pair, marker.EffectLogFC, gf), "metagenomeSeq: ZILN", nil

		case ModelZIG:
			fit, err := s.zig.FitZIG(ctx, pre.counts, gf, pre.scales, opts)
			if err != nil {
				return nil, "", err
			}
			rows, err := s.zig.Coefficients(fit, req.Adjust)
			if err != nil {
				return nil, "", err
			}
			return harmonizeTwoGroup(rows, *plan.Pair, marker.EffectCoefficient, gf), "metagenomeSeq: ZIG", nil
		}
		return nil, "", fmt.Errorf("%w: model %q", core.ErrInvalidEnum, req.Model)
	}

	// Multi-group: ZIG only, through the contrast chain.
	fit, err := s.zig.FitZIG(ctx, pre.counts, gf, pre.scales, opts)
	if err != nil {
		return nil, "", err
	}
	cfit, err := s.contrasts.ContrastsFit(fit, plan.Matrix)
	if err != nil {
		return nil, "", err
	}
	cfit, err = s.contrasts.EmpiricalBayes(cfit)
	if err != nil {
		return nil, "", err
	}
	ranked, err := s.contrasts.TopTable(cfit, req.Adjust)
	if err != nil {
		return nil, "", err
	}
	return harmonizeRanked(ranked, plan, gf), "metagenomeSeq: ZIG", nil
}

// harmonizeTwoGroup maps single-coefficient rows onto canonical records:
// positive effect enriches the numerator group.
func harmonizeTwoGroup(rows []ports.FeatureResult, pair contrast.Pair, kind marker.EffectKind, gf *profile.GroupFactor) []marker.Record {
	records := make([]marker.Record, len(rows))
	for i, r := range rows {
		records[i] = marker.Record{
			Feature:     r.Feature,
			EnrichGroup: rawLabel(gf, marker.EnrichForPair(r.Effect, pair)),
			EffectSize:  r.Effect,
			EffectKind:  kind,
			PValue:      r.PValue,
			PAdjusted:   r.PAdjusted,
		}
	}
	return records
}

// harmonizeRanked maps multi-contrast rows onto canonical records. An
// explicit pair keeps the logFC sign rule; all-pairs runs derive the group
// that never loses a pairwise comparison.
func harmonizeRanked(rows []ports.RankedRow, plan *contrast.Plan, gf *profile.GroupFactor) []marker.Record {
	records := make([]marker.Record, len(rows))
	for i, r := range rows {
		rec := marker.Record{
			Feature:   r.Feature,
			PValue:    r.PValue,
			PAdjusted: r.PAdjusted,
		}
		if !plan.AllPairs() {
			rec.EffectSize = r.LogFC[0]
			rec.EffectKind = marker.EffectLogFC
			rec.EnrichGroup = rawLabel(gf, marker.EnrichForPair(r.LogFC[0], *plan.Pair))
		} else {
			winner, ambiguous := marker.DeriveWinner(r.LogFC, r.Pairs)
			rec.EffectSize = r.FStatistic
			rec.EffectKind = marker.EffectFStatistic
			rec.EnrichGroup = rawLabel(gf, winner)
			rec.Ambiguous = ambiguous
		}
		records[i] = rec
	}
	return records
}

// rawLabel maps a sanitized level back to the caller's original label.
func rawLabel(gf *profile.GroupFactor, level string) string {
	if raw, ok := gf.Raw[level]; ok {
		return raw
	}
	return level
}

// fingerprint hashes the invocation and its table for replay checks.
func fingerprint(req AnalysisRequest, res *marker.Result) core.Hash {
	fields := map[string]string{
		"group":     req.GroupColumn,
		"rank":      req.TaxaRank,
		"transform": string(req.Transform),
		"norm":      string(req.Norm),
		"model":     string(req.Model),
		"adjust":    string(req.Adjust),
		"cutoff":    fmt.Sprintf("%g", req.PValueCutoff),
		"seed":      fmt.Sprintf("%d", req.NormOptions.Seed),
		"rows":      fmt.Sprintf("%d", res.Table.Len()),
	}
	for _, r := range res.Table.Records {
		fields["row:"+r.ID] = fmt.Sprintf("%s|%s|%g|%g|%g", r.Feature, r.EnrichGroup, r.EffectSize, r.PValue, r.PAdjusted)
	}
	return core.HashFields(fields)
}
