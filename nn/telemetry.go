package nn

// ModelTelemetry represents a single network's structure
type ModelTelemetry struct {
	ID          string           `json:"id"`
	InputShape  []int            `json:"input_shape"`
	TotalLayers int              `json:"total_layers"`
	TotalParams int              `json:"total_parameters"`
	Layers      []LayerTelemetry `json:"layers"`
}

// LayerTelemetry contains metadata about a specific layer
type LayerTelemetry struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Parameters int    `json:"parameters"`
	Supported  bool   `json:"supported"`

	InputShape  []int `json:"input_shape,omitempty"`
	OutputShape []int `json:"output_shape,omitempty"`
}

// ExtractNetworkBlueprint extracts telemetry data from a network.
// Shapes are omitted when the layer list is inconsistent.
func ExtractNetworkBlueprint(n *Network, modelID string) ModelTelemetry {
	telemetry := ModelTelemetry{
		ID:          modelID,
		InputShape:  n.InputShape,
		TotalLayers: len(n.Layers),
		Layers:      make([]LayerTelemetry, 0, len(n.Layers)),
	}

	shapes, err := n.OutputShapes()
	if err != nil {
		shapes = nil
	}

	in := n.InputShape
	for i := range n.Layers {
		l := &n.Layers[i]
		lt := LayerTelemetry{
			Index:      i,
			Type:       l.TypeName(),
			Name:       l.Name,
			Parameters: len(l.Kernel) + len(l.Bias),
			Supported:  IsSupported(l.Type),
		}
		if shapes != nil {
			lt.InputShape = in
			lt.OutputShape = shapes[i]
			in = shapes[i]
		}
		telemetry.Layers = append(telemetry.Layers, lt)
		telemetry.TotalParams += lt.Parameters
	}

	return telemetry
}
