// Package interval propagates L∞ input balls through feed-forward ReLU
// networks and bounds every activation.
//
// Two abstract domains are provided. Box keeps independent per-unit
// bounds. Symbolic keeps each unit as an affine form over the input
// perturbation plus one error term per relaxed ReLU unit, which keeps
// correlations across layers and gives tighter bounds.
//
// Usage:
//
//	net, err := interval.FromModel(model)
//	res, err := interval.SymbolicAnalyze(net, x, model.InputShape, labels, 0.01)
//	fmt.Println(res.Loss, res.RobustError)
//
// Every bound produced is sound: any concrete input inside the ball yields
// activations inside the bounds at every layer.
package interval
