package module

// DefaultMaxSize is the inline threshold used when no condition is configured.
const DefaultMaxSize = 8192

// Predicate decides whether a module should be inlined.
type Predicate func(m *AssetModule) bool

// DataURLCondition selects between inline and resource handling for modules
// of type asset. Predicate, when set, takes precedence over MaxSize. A
// MaxSize of zero never inlines.
type DataURLCondition struct {
	MaxSize   int
	Predicate Predicate
}

// DefaultDataURLCondition inlines modules smaller than DefaultMaxSize.
func DefaultDataURLCondition() DataURLCondition {
	return DataURLCondition{MaxSize: DefaultMaxSize}
}

// ShouldInline returns true when the module should be encoded as a data URI
// and false when it should be emitted as a file.
func (c DataURLCondition) ShouldInline(m *AssetModule) bool {
	if c.Predicate != nil {
		return c.Predicate(m)
	}
	return m.Size() < c.MaxSize
}
