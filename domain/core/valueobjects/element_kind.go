package valueobjects

// ElementKind identifies the backend record type a shape is bound to.
// The set is closed: a kind outside this list is treated as unrecognized
// and connectors touching it are classified as invalid.
type ElementKind string

const (
	KindBusinessCapability ElementKind = "businessCapability"
	KindApplication        ElementKind = "application"
	KindDataObject         ElementKind = "dataObject"
	KindInterface          ElementKind = "interface"
	KindInfrastructure     ElementKind = "infrastructure"
	KindAIComponent        ElementKind = "aiComponent"
)

// allElementKinds is the closed set of recognized kinds.
var allElementKinds = map[ElementKind]bool{
	KindBusinessCapability: true,
	KindApplication:        true,
	KindDataObject:         true,
	KindInterface:          true,
	KindInfrastructure:     true,
	KindAIComponent:        true,
}

// IsRecognized reports whether the kind belongs to the closed kind set.
func (k ElementKind) IsRecognized() bool {
	return allElementKinds[k]
}

// String returns the wire representation of the kind.
func (k ElementKind) String() string {
	return string(k)
}

// ElementKinds returns all recognized kinds in a stable order.
func ElementKinds() []ElementKind {
	return []ElementKind{
		KindBusinessCapability,
		KindApplication,
		KindDataObject,
		KindInterface,
		KindInfrastructure,
		KindAIComponent,
	}
}
