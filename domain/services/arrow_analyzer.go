package services

import (
	"context"

	"github.com/google/uuid"

	"archsync-backend/domain/core/entities"
	"archsync-backend/domain/core/valueobjects"
	"archsync-backend/domain/schema"
	"archsync-backend/pkg/observability"
)

// ProposalStatus classifies an analyzed connector.
type ProposalStatus string

const (
	StatusValid      ProposalStatus = "valid"
	StatusIncomplete ProposalStatus = "incomplete"
	StatusInvalid    ProposalStatus = "invalid"
)

// Invalid reasons surfaced for user-facing formatting.
const (
	ReasonUnknownKinds      = "unknown element kinds"
	ReasonIncompatibleKinds = "incompatible kinds"
)

// RecordRef points at one endpoint of a proposed relationship. RecordID is
// empty while the endpoint shape is not yet backed by a backend record; the
// creation pipeline rewrites it after element creation.
type RecordRef struct {
	ShapeID  string
	RecordID string
}

// ProposedRelationship is the transient outcome of analyzing one
// connector. Created fresh on every analysis pass, never persisted.
type ProposedRelationship struct {
	ID          string
	ConnectorID string
	Source      RecordRef
	Target      RecordRef
	SourceKind  valueobjects.ElementKind
	TargetKind  valueobjects.ElementKind
	Rule        *schema.RelationshipRule

	// Label is the connector's free-form text, used as display name
	// override on the created relationship.
	Label string

	Status          ProposalStatus
	MissingEndpoint EndpointSide
	InvalidReason   string
}

// AnalysisResult is the full outcome of one analysis pass.
type AnalysisResult struct {
	Valid      []*ProposedRelationship
	Incomplete []*ProposedRelationship
	Invalid    []*ProposedRelationship

	// BindingIssues and CorrectedShapes record connector endpoint rewrites
	// performed by the binding correction pass. CorrectedShapes carry the
	// rewritten connectors so the caller can persist them.
	BindingIssues   []BindingIssue
	CorrectedShapes []*entities.Shape
}

// ExistenceChecker answers whether a relationship already exists in the
// backend, so the analyzer can drop duplicate-creation offers.
type ExistenceChecker interface {
	RelationshipExists(ctx context.Context, field, sourceID, targetID string) (bool, error)
}

// ArrowAnalyzer turns connectors into typed relationship proposals. The
// analysis itself is synchronous and pure; only the optional existence
// check reaches out.
type ArrowAnalyzer struct {
	resolver *BindingResolver
	registry *schema.Registry
	checker  ExistenceChecker
	metrics  *observability.Metrics
}

// NewArrowAnalyzer creates an analyzer. The checker may be nil, in which
// case no de-duplication against the backend happens; metrics may be nil
// to switch instrumentation off.
func NewArrowAnalyzer(resolver *BindingResolver, registry *schema.Registry, checker ExistenceChecker, metrics *observability.Metrics) *ArrowAnalyzer {
	return &ArrowAnalyzer{
		resolver: resolver,
		registry: registry,
		checker:  checker,
		metrics:  metrics,
	}
}

// Analyze classifies every connector in the scene. Structural problems are
// downgraded to incomplete/invalid proposals, never returned as errors.
func (a *ArrowAnalyzer) Analyze(ctx context.Context, shapes []*entities.Shape) *AnalysisResult {
	result := &AnalysisResult{}
	idx := entities.ShapeIndex(shapes)

	for _, shape := range shapes {
		if !shape.IsConnector() {
			continue
		}

		conn := shape
		if corrected, issues, changed := a.resolver.CorrectConnector(conn, shapes); changed {
			result.CorrectedShapes = append(result.CorrectedShapes, corrected)
			result.BindingIssues = append(result.BindingIssues, issues...)
			conn = corrected
		}

		proposal := a.classify(conn, shapes, idx)
		switch proposal.Status {
		case StatusValid:
			result.Valid = append(result.Valid, proposal)
		case StatusIncomplete:
			result.Incomplete = append(result.Incomplete, proposal)
		case StatusInvalid:
			result.Invalid = append(result.Invalid, proposal)
		}
	}

	if a.checker != nil {
		result.Valid = a.dropExisting(ctx, result.Valid)
	}

	a.metrics.ProposalsObserved(string(StatusValid), len(result.Valid))
	a.metrics.ProposalsObserved(string(StatusIncomplete), len(result.Incomplete))
	a.metrics.ProposalsObserved(string(StatusInvalid), len(result.Invalid))

	return result
}

func (a *ArrowAnalyzer) classify(conn *entities.Shape, shapes []*entities.Shape, idx map[string]*entities.Shape) *ProposedRelationship {
	proposal := &ProposedRelationship{
		ID:          uuid.New().String(),
		ConnectorID: conn.ID,
		Label:       conn.Text,
	}

	source := a.endpointPrimary(conn.Start, shapes, idx)
	target := a.endpointPrimary(conn.End, shapes, idx)

	missing := missingSide(source == nil, target == nil)
	if missing != "" {
		proposal.Status = StatusIncomplete
		proposal.MissingEndpoint = missing
		if source != nil {
			proposal.Source = recordRef(source)
			proposal.SourceKind = source.Annotation.Kind
		}
		if target != nil {
			proposal.Target = recordRef(target)
			proposal.TargetKind = target.Annotation.Kind
		}
		return proposal
	}

	proposal.Source = recordRef(source)
	proposal.Target = recordRef(target)
	proposal.SourceKind = source.Annotation.Kind
	proposal.TargetKind = target.Annotation.Kind

	if !proposal.SourceKind.IsRecognized() || !proposal.TargetKind.IsRecognized() {
		proposal.Status = StatusInvalid
		proposal.InvalidReason = ReasonUnknownKinds
		return proposal
	}

	rules := a.registry.RulesFor(proposal.SourceKind, proposal.TargetKind)
	if len(rules) == 0 {
		proposal.Status = StatusInvalid
		proposal.InvalidReason = ReasonIncompatibleKinds
		return proposal
	}

	// Registry ordering puts canonical-orientation rules first, so when a
	// bidirectional kind pair matches more than one rule the direct rule
	// wins deterministically.
	rule := rules[0]
	proposal.Rule = &rule
	proposal.Status = StatusValid
	return proposal
}

// endpointPrimary resolves a connector endpoint to its primary
// domain-bearing shape. Returns nil when the ref is absent, dangling, or
// the resolved shape carries no domain annotation.
func (a *ArrowAnalyzer) endpointPrimary(ref *entities.EndpointRef, shapes []*entities.Shape, idx map[string]*entities.Shape) *entities.Shape {
	if ref == nil {
		return nil
	}
	bound, ok := idx[ref.ShapeID]
	if !ok {
		return nil
	}
	primary := a.resolver.ResolvePrimary(bound, shapes)
	if primary == nil || primary.Annotation == nil {
		return nil
	}
	return primary
}

func (a *ArrowAnalyzer) dropExisting(ctx context.Context, proposals []*ProposedRelationship) []*ProposedRelationship {
	kept := proposals[:0]
	for _, p := range proposals {
		if p.Source.RecordID == "" || p.Target.RecordID == "" {
			kept = append(kept, p)
			continue
		}
		exists, err := a.checker.RelationshipExists(ctx, p.Rule.Field, p.Source.RecordID, p.Target.RecordID)
		if err != nil {
			// Keep the offer when the check fails; creating a duplicate is
			// a backend no-op, dropping a needed proposal is not.
			kept = append(kept, p)
			continue
		}
		if !exists {
			kept = append(kept, p)
		}
	}
	return kept
}

func recordRef(primary *entities.Shape) RecordRef {
	ref := RecordRef{ShapeID: primary.ID}
	if primary.HasDomainRecord() {
		ref.RecordID = primary.Annotation.RecordID
	}
	return ref
}

func missingSide(sourceMissing, targetMissing bool) EndpointSide {
	switch {
	case sourceMissing && targetMissing:
		return EndpointBoth
	case sourceMissing:
		return EndpointSource
	case targetMissing:
		return EndpointTarget
	default:
		return ""
	}
}
