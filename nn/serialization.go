package nn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

const bundleType = "modelhost/bundle"

// ModelBundle represents a collection of saved models
type ModelBundle struct {
	Type    string       `json:"type"`
	Version int          `json:"version"`
	Models  []SavedModel `json:"models"`
}

// SavedModel represents a single saved model with config and weights
type SavedModel struct {
	ID      string         `json:"id"`
	Config  NetworkConfig  `json:"cfg"`
	Weights EncodedWeights `json:"weights"`
}

// NetworkConfig represents the network architecture
type NetworkConfig struct {
	ID         string            `json:"id"`
	InputShape []int             `json:"input_shape"`
	Layers     []LayerDefinition `json:"layers"`
}

// LayerDefinition defines a single layer's configuration
type LayerDefinition struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`

	// Dense layer fields
	InputSize  int `json:"input_size,omitempty"`
	OutputSize int `json:"output_size,omitempty"`

	// Conv2D fields
	InputChannels int `json:"input_channels,omitempty"`
	Filters       int `json:"filters,omitempty"`
	KernelSize    int `json:"kernel_size,omitempty"`
	Stride        int `json:"stride,omitempty"`
	Padding       int `json:"padding,omitempty"`
	InputHeight   int `json:"input_height,omitempty"`
	InputWidth    int `json:"input_width,omitempty"`
	OutputHeight  int `json:"output_height,omitempty"`
	OutputWidth   int `json:"output_width,omitempty"`
}

// EncodedWeights stores weights in base64-encoded JSON format
type EncodedWeights struct {
	Format string `json:"fmt"`
	Data   string `json:"data"`
}

// WeightsData represents the actual weight values
type WeightsData struct {
	Type   string         `json:"type"`
	Layers []LayerWeights `json:"layers"`
}

// LayerWeights stores weights for a single layer
type LayerWeights struct {
	Kernel []float64 `json:"kernel,omitempty"`
	Biases []float64 `json:"biases,omitempty"`
}

// SaveModel saves a single model to a file
func (n *Network) SaveModel(filename string, modelID string) error {
	savedModel, err := n.SerializeModel(modelID)
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}

	bundle := ModelBundle{
		Type:    bundleType,
		Version: 1,
		Models:  []SavedModel{savedModel},
	}
	return bundle.SaveToFile(filename)
}

// SerializeModel converts the network to a SavedModel structure
func (n *Network) SerializeModel(modelID string) (SavedModel, error) {
	config := NetworkConfig{
		ID:         modelID,
		InputShape: n.InputShape,
		Layers:     make([]LayerDefinition, 0, len(n.Layers)),
	}
	weightsData := WeightsData{
		Type:   "float64",
		Layers: make([]LayerWeights, 0, len(n.Layers)),
	}

	for i := range n.Layers {
		l := &n.Layers[i]
		def := LayerDefinition{
			Type: l.TypeName(),
			Name: l.Name,
		}
		var w LayerWeights

		switch l.Type {
		case LayerDense:
			def.InputSize = l.InputSize
			def.OutputSize = l.OutputSize
			w.Kernel = l.Kernel
			w.Biases = l.Bias
		case LayerConv2D:
			def.InputChannels = l.InputChannels
			def.Filters = l.Filters
			def.KernelSize = l.KernelSize
			def.Stride = l.Stride
			def.Padding = l.Padding
			def.InputHeight = l.InputHeight
			def.InputWidth = l.InputWidth
			def.OutputHeight = l.OutputHeight
			def.OutputWidth = l.OutputWidth
			w.Kernel = l.Kernel
			w.Biases = l.Bias
		case LayerReLU, LayerFlatten:
			// no parameters
		default:
			if l.RawType == "" {
				return SavedModel{}, fmt.Errorf("layer %d: cannot serialize layer type %d", i, l.Type)
			}
			// unknown kinds round-trip by name, without weights
		}

		config.Layers = append(config.Layers, def)
		weightsData.Layers = append(weightsData.Layers, w)
	}

	weightsJSON, err := json.Marshal(weightsData)
	if err != nil {
		return SavedModel{}, fmt.Errorf("failed to marshal weights: %w", err)
	}

	return SavedModel{
		ID:     modelID,
		Config: config,
		Weights: EncodedWeights{
			Format: "jsonModelB64",
			Data:   base64.StdEncoding.EncodeToString(weightsJSON),
		},
	}, nil
}

// LoadModel loads a single model from a file
func LoadModel(filename string, modelID string) (*Network, error) {
	bundle, err := LoadBundle(filename)
	if err != nil {
		return nil, err
	}
	return bundle.Model(modelID)
}

// LoadBundle loads a model bundle from a file
func LoadBundle(filename string) (*ModelBundle, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return LoadBundleFromString(string(data))
}

// LoadBundleFromString loads a model bundle from a JSON string
func LoadBundleFromString(jsonString string) (*ModelBundle, error) {
	var bundle ModelBundle
	if err := json.Unmarshal([]byte(jsonString), &bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bundle: %w", err)
	}

	if bundle.Type != bundleType {
		return nil, fmt.Errorf("invalid bundle type: %s", bundle.Type)
	}

	return &bundle, nil
}

// Model finds and deserializes the model with the given id. An empty id
// selects the first model in the bundle.
func (b *ModelBundle) Model(modelID string) (*Network, error) {
	for _, savedModel := range b.Models {
		if modelID == "" || savedModel.ID == modelID {
			return DeserializeModel(savedModel)
		}
	}
	return nil, fmt.Errorf("model %s not found in bundle", modelID)
}

// SaveToFile saves the bundle to a file
func (b *ModelBundle) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// DeserializeModel creates a Network from a SavedModel
func DeserializeModel(saved SavedModel) (*Network, error) {
	weightsJSON, err := base64.StdEncoding.DecodeString(saved.Weights.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}

	var weightsData WeightsData
	if err := json.Unmarshal(weightsJSON, &weightsData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}

	network := NewNetwork(saved.Config.InputShape)
	for i, def := range saved.Config.Layers {
		config, err := buildLayerConfig(def)
		if err != nil {
			return nil, fmt.Errorf("failed to build layer %d: %w", i, err)
		}
		if i < len(weightsData.Layers) {
			config.Kernel = weightsData.Layers[i].Kernel
			config.Bias = weightsData.Layers[i].Biases
		}
		network.Layers = append(network.Layers, config)
	}

	return network, nil
}

// buildLayerConfig constructs a LayerConfig from a LayerDefinition.
// Unrecognized type names load as LayerUnknown.
func buildLayerConfig(def LayerDefinition) (LayerConfig, error) {
	if def.Type == "" {
		return LayerConfig{}, fmt.Errorf("missing layer type")
	}
	lt, ok := ParseLayerType(def.Type)
	if !ok {
		return LayerConfig{Type: LayerUnknown, Name: def.Name, RawType: def.Type}, nil
	}

	config := LayerConfig{Type: lt, Name: def.Name}
	switch lt {
	case LayerDense:
		config.InputSize = def.InputSize
		config.OutputSize = def.OutputSize
	case LayerConv2D:
		config.InputChannels = def.InputChannels
		config.Filters = def.Filters
		config.KernelSize = def.KernelSize
		config.Stride = def.Stride
		if config.Stride == 0 {
			config.Stride = 1
		}
		config.Padding = def.Padding
		config.InputHeight = def.InputHeight
		config.InputWidth = def.InputWidth
		config.OutputHeight = def.OutputHeight
		config.OutputWidth = def.OutputWidth
		if config.OutputHeight == 0 && config.OutputWidth == 0 {
			config.OutputHeight, config.OutputWidth = ConvOutputSize(
				def.InputHeight, def.InputWidth, def.KernelSize, config.Stride, def.Padding)
		}
	}

	return config, nil
}
