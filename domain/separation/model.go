package separation

import (
	"fmt"
	"strings"
)

// Model is one of the supported pretrained separation models
type Model string

const (
	ModelHTDemucs   Model = "ht_demucs"
	ModelHTDemucsFT Model = "ht_demucs_ft"
	ModelMDXDemucs  Model = "mdx_demucs"
	ModelMDXExtra   Model = "mdx_extra"
)

type modelInfo struct {
	pretrained  string
	description string
}

var models = map[Model]modelInfo{
	ModelHTDemucs: {
		pretrained:  "htdemucs",
		description: "Hybrid Transformer Demucs, the latest model. In some cases it performs worse than older models",
	},
	ModelHTDemucsFT: {
		pretrained:  "htdemucs_ft",
		description: "fine-tuned Hybrid Transformer Demucs, slower but usually cleaner vocals",
	},
	ModelMDXDemucs: {
		pretrained:  "mdx_extra_q",
		description: "the previous quantized Demucs model",
	},
	ModelMDXExtra: {
		pretrained:  "mdx_extra",
		description: "the previous Demucs model trained with extra data",
	},
}

// DefaultModel is the first listed model
const DefaultModel = ModelHTDemucs

// Models returns every supported model, default first
func Models() []Model {
	return []Model{ModelHTDemucs, ModelHTDemucsFT, ModelMDXDemucs, ModelMDXExtra}
}

// ParseModel accepts either the CLI name (ht_demucs) or the pretrained
// name (htdemucs) of a supported model
func ParseModel(s string) (Model, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultModel, nil
	}

	for _, m := range Models() {
		if string(m) == s || models[m].pretrained == s {
			return m, nil
		}
	}

	names := make([]string, 0, len(models))
	for _, m := range Models() {
		names = append(names, string(m))
	}
	return "", fmt.Errorf("unknown model %q: expected one of %s", s, strings.Join(names, ", "))
}

// Pretrained returns the name the separation library knows the model by
func (m Model) Pretrained() string {
	return models[m].pretrained
}

// Description returns a short help text for the model
func (m Model) Description() string {
	return models[m].description
}

// IsValid returns true for a supported model
func (m Model) IsValid() bool {
	_, ok := models[m]
	return ok
}

func (m Model) String() string {
	return string(m)
}
