package config

// LLMConfig configures the Gemini image model.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`

	// Sampling temperature per call site. Verification runs cold so scores
	// stay comparable between attempts.
	GenerateTemperature float32 `yaml:"generate_temperature"`
	VerifyTemperature   float32 `yaml:"verify_temperature"`
	AnnotateTemperature float32 `yaml:"annotate_temperature"`

	// Longest edge, in pixels, of images sent to the model.
	SpaceMaxEdge       int `yaml:"space_max_edge"`
	InspirationMaxEdge int `yaml:"inspiration_max_edge"`
	AnnotateMaxEdge    int `yaml:"annotate_max_edge"`

	// JPEG quality for request parts and for saved outputs.
	RequestQuality int `yaml:"request_quality"`
	OutputQuality  int `yaml:"output_quality"`
}

// DefaultLLMConfig returns the model defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:               "nano-banana-pro-preview",
		GenerateTemperature: 0.7,
		VerifyTemperature:   0.3,
		AnnotateTemperature: 0.4,
		SpaceMaxEdge:        1200,
		InspirationMaxEdge:  1000,
		AnnotateMaxEdge:     1500,
		RequestQuality:      90,
		OutputQuality:       95,
	}
}
