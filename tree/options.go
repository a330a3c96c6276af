package tree

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithCP sets the complexity parameter. A split must reduce the total
// squared error by at least CP times the root error to be kept.
func WithCP(cp float64) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.CP = cp
	}
}

// WithMaxDepth sets the maximum depth of the tree. The root has depth 0.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of rows a node needs before
// a split is attempted.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of rows in any leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MinSamplesLeaf = n
	}
}
