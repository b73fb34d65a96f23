// Package schema is the single source of truth for which domain kind pairs
// may be connected and what a connector between them means. The analyzer and
// the creation pipeline never hard-code kind pairs anywhere else.
package schema

import (
	"archsync-backend/domain/core/valueobjects"
)

// RelationKind names the semantic meaning of a relationship.
type RelationKind string

const (
	RelationSupports   RelationKind = "SUPPORTS"
	RelationUses       RelationKind = "USES"
	RelationIsSourceOf RelationKind = "IS_SOURCE_OF"
	RelationIsTargetOf RelationKind = "IS_TARGET_OF"
	RelationRunsOn     RelationKind = "RUNS_ON"
	RelationTransports RelationKind = "TRANSPORTS"
	RelationAugments   RelationKind = "AUGMENTS"
	RelationTrainsOn   RelationKind = "TRAINS_ON"
)

// RelationshipRule is a permitted (source-kind, target-kind, relation-kind)
// tuple together with its backend field mapping. Each rule is declared once
// in its canonical orientation; the reverse orientation is generated
// mechanically by Inverse, so the forward and reverse field tables cannot
// drift apart.
type RelationshipRule struct {
	Kind       RelationKind
	SourceKind valueobjects.ElementKind
	TargetKind valueobjects.ElementKind

	// Field is the backend relation field written when persisting a
	// relationship from SourceKind to TargetKind.
	Field string

	// ReverseField is the backend field for the opposite traversal.
	ReverseField string

	// Inverted is true on rules produced by Inverse: the connector is
	// drawn opposite to the canonical field direction, so the connector
	// target is the rule's logical source.
	Inverted bool
}

// Inverse returns the rule flipped into the opposite orientation.
func (r RelationshipRule) Inverse() RelationshipRule {
	return RelationshipRule{
		Kind:         r.Kind,
		SourceKind:   r.TargetKind,
		TargetKind:   r.SourceKind,
		Field:        r.ReverseField,
		ReverseField: r.Field,
		Inverted:     !r.Inverted,
	}
}

// defaultRules is the canonical rule table. Fixed at build time.
var defaultRules = []RelationshipRule{
	{
		Kind:         RelationSupports,
		SourceKind:   valueobjects.KindApplication,
		TargetKind:   valueobjects.KindBusinessCapability,
		Field:        "relApplicationToBusinessCapability",
		ReverseField: "relBusinessCapabilityToApplication",
	},
	{
		Kind:         RelationUses,
		SourceKind:   valueobjects.KindApplication,
		TargetKind:   valueobjects.KindDataObject,
		Field:        "relApplicationToDataObject",
		ReverseField: "relDataObjectToApplication",
	},
	{
		Kind:         RelationIsSourceOf,
		SourceKind:   valueobjects.KindApplication,
		TargetKind:   valueobjects.KindInterface,
		Field:        "relProviderApplicationToInterface",
		ReverseField: "relInterfaceToProviderApplication",
	},
	{
		Kind:         RelationIsTargetOf,
		SourceKind:   valueobjects.KindInterface,
		TargetKind:   valueobjects.KindApplication,
		Field:        "relInterfaceToConsumerApplication",
		ReverseField: "relConsumerApplicationToInterface",
	},
	{
		Kind:         RelationRunsOn,
		SourceKind:   valueobjects.KindApplication,
		TargetKind:   valueobjects.KindInfrastructure,
		Field:        "relApplicationToInfrastructure",
		ReverseField: "relInfrastructureToApplication",
	},
	{
		Kind:         RelationTransports,
		SourceKind:   valueobjects.KindInterface,
		TargetKind:   valueobjects.KindDataObject,
		Field:        "relInterfaceToDataObject",
		ReverseField: "relDataObjectToInterface",
	},
	{
		Kind:         RelationAugments,
		SourceKind:   valueobjects.KindAIComponent,
		TargetKind:   valueobjects.KindApplication,
		Field:        "relAIComponentToApplication",
		ReverseField: "relApplicationToAIComponent",
	},
	{
		Kind:         RelationTrainsOn,
		SourceKind:   valueobjects.KindAIComponent,
		TargetKind:   valueobjects.KindDataObject,
		Field:        "relAIComponentToDataObject",
		ReverseField: "relDataObjectToAIComponent",
	},
	{
		Kind:         RelationRunsOn,
		SourceKind:   valueobjects.KindAIComponent,
		TargetKind:   valueobjects.KindInfrastructure,
		Field:        "relAIComponentToInfrastructure",
		ReverseField: "relInfrastructureToAIComponent",
	},
}

type kindPair struct {
	source valueobjects.ElementKind
	target valueobjects.ElementKind
}

// Registry answers rule lookups for kind pairs in either orientation.
type Registry struct {
	rules   []RelationshipRule
	byPair  map[kindPair][]RelationshipRule
	byField map[string]RelationshipRule
}

// NewRegistry builds the registry over the built-in rule table.
func NewRegistry() *Registry {
	return newRegistry(defaultRules)
}

func newRegistry(rules []RelationshipRule) *Registry {
	r := &Registry{
		rules:   rules,
		byPair:  make(map[kindPair][]RelationshipRule),
		byField: make(map[string]RelationshipRule),
	}
	for _, rule := range rules {
		// Direct orientation first so pair lookups prefer the canonical
		// rule over a generated inverse.
		direct := kindPair{source: rule.SourceKind, target: rule.TargetKind}
		r.byPair[direct] = append(r.byPair[direct], rule)
		r.byField[rule.Field] = rule
	}
	for _, rule := range rules {
		inv := rule.Inverse()
		pair := kindPair{source: inv.SourceKind, target: inv.TargetKind}
		r.byPair[pair] = append(r.byPair[pair], inv)
		r.byField[inv.Field] = inv
	}
	return r
}

// RulesFor returns all rules applicable to a connector from sourceKind to
// targetKind. Canonical-orientation rules come before generated inverses,
// which makes the analyzer's first-match pick deterministic.
func (r *Registry) RulesFor(sourceKind, targetKind valueobjects.ElementKind) []RelationshipRule {
	return r.byPair[kindPair{source: sourceKind, target: targetKind}]
}

// RuleForField resolves a rule by its backend field name.
func (r *Registry) RuleForField(field string) (RelationshipRule, bool) {
	rule, ok := r.byField[field]
	return rule, ok
}

// IsValid reports whether kind is a permitted relation between the two
// element kinds, in the given orientation.
func (r *Registry) IsValid(sourceKind, targetKind valueobjects.ElementKind, kind RelationKind) bool {
	for _, rule := range r.RulesFor(sourceKind, targetKind) {
		if rule.Kind == kind {
			return true
		}
	}
	return false
}

// displayNames maps locale -> relation kind -> user-facing name.
var displayNames = map[string]map[RelationKind]string{
	"en": {
		RelationSupports:   "supports",
		RelationUses:       "uses",
		RelationIsSourceOf: "is source of",
		RelationIsTargetOf: "is target of",
		RelationRunsOn:     "runs on",
		RelationTransports: "transports",
		RelationAugments:   "augments",
		RelationTrainsOn:   "trains on",
	},
	"de": {
		RelationSupports:   "unterstützt",
		RelationUses:       "verwendet",
		RelationIsSourceOf: "ist Quelle von",
		RelationIsTargetOf: "ist Ziel von",
		RelationRunsOn:     "läuft auf",
		RelationTransports: "überträgt",
		RelationAugments:   "erweitert",
		RelationTrainsOn:   "trainiert auf",
	},
}

// DisplayName returns the localized name of a relation kind. Unknown
// locales fall back to English; unknown kinds fall back to the raw kind.
func (r *Registry) DisplayName(kind RelationKind, locale string) string {
	names, ok := displayNames[locale]
	if !ok {
		names = displayNames["en"]
	}
	if name, ok := names[kind]; ok {
		return name
	}
	return string(kind)
}
