package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

var ErrInvalidAssistantType = errors.New("chat: invalid assistant type")

// Variant is one caller-selectable assistant configuration.
type Variant struct {
	Label           string
	AssistantID     string
	ForceFileSearch bool
}

// Registry resolves the X-Assistant-Type label to a Variant. A registry built
// with NewSingleAssistant ignores the label entirely.
type Registry struct {
	single   *Variant
	variants map[string]Variant
}

func NewSingleAssistant(assistantID string) *Registry {
	return &Registry{single: &Variant{AssistantID: assistantID}}
}

func NewRegistry(variants ...Variant) (*Registry, error) {
	if len(variants) == 0 {
		return nil, errors.New("chat: at least one assistant variant is required")
	}

	index := make(map[string]Variant, len(variants))
	for _, v := range variants {
		v.Label = strings.TrimSpace(v.Label)
		v.AssistantID = strings.TrimSpace(v.AssistantID)
		if v.Label == "" || v.AssistantID == "" {
			return nil, fmt.Errorf("chat: variant %q needs both a label and an assistant id", v.Label)
		}
		if _, dup := index[v.Label]; dup {
			return nil, fmt.Errorf("chat: duplicate variant %q", v.Label)
		}
		index[v.Label] = v
	}

	return &Registry{variants: index}, nil
}

// RegistryFromConfig picks the header-selected mode when variants are
// configured and the single-assistant mode otherwise.
func RegistryFromConfig(cfg utils.AssistantsConfig) (*Registry, error) {
	if !cfg.MultiVariant() {
		if strings.TrimSpace(cfg.DefaultID) == "" {
			return nil, errors.New("chat: no assistant configured")
		}
		registry := NewSingleAssistant(strings.TrimSpace(cfg.DefaultID))
		registry.single.ForceFileSearch = cfg.ForceFileSearch
		return registry, nil
	}

	variants := make([]Variant, 0, len(cfg.Variants))
	for label, id := range cfg.Variants {
		variants = append(variants, Variant{Label: label, AssistantID: id, ForceFileSearch: cfg.ForceFileSearch})
	}
	return NewRegistry(variants...)
}

func (r *Registry) Resolve(label string) (Variant, error) {
	if r.single != nil {
		return *r.single, nil
	}

	v, ok := r.variants[strings.TrimSpace(label)]
	if !ok {
		return Variant{}, ErrInvalidAssistantType
	}
	return v, nil
}

func (r *Registry) MultiVariant() bool {
	return r.single == nil
}

func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.variants))
	for label := range r.variants {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
