package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/edugest/internal/llm"
)

//go:embed defaults/global.yaml
var globalDefaults []byte

// ErrConfiguration marks a resolved extraction config with required fields
// absent. It is never defaulted.
var ErrConfiguration = errors.New("invalid extraction configuration")

// ExtractionConfig is resolved once per run from global defaults, a domain
// override, and a document type override.
type ExtractionConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	MaxAssertions   int           `yaml:"max_assertions"`
	ChunkRetries    int           `yaml:"chunk_retries"`
	ChunkRetryBase  time.Duration `yaml:"chunk_retry_base"`
	Categories      []string      `yaml:"categories"`
	DefaultCategory string        `yaml:"default_category"`

	Items          ItemLimits            `yaml:"items"`
	Classification ClassificationConfig  `yaml:"classification"`
	Segmentation   SegmentationConfig    `yaml:"segmentation"`
	Filter         FilterSettings        `yaml:"filter"`
	Pyramid        PyramidConfig         `yaml:"pyramid"`
	Models         map[string]llm.Params `yaml:"models"`
}

// ItemLimits bound the length of any extracted text.
type ItemLimits struct {
	MinChars int `yaml:"min_chars"`
	MaxChars int `yaml:"max_chars"`
}

type ClassificationConfig struct {
	SampleSize  int    `yaml:"sample_size"`
	FewShotMax  int    `yaml:"few_shot_max"`
	DefaultType string `yaml:"default_type"`
}

type SegmentationConfig struct {
	MinCompositeChars int `yaml:"min_composite_chars"`
	SampleSize        int `yaml:"sample_size"`
}

// FilterSettings drive the section filter.
type FilterSettings struct {
	MinSectionChars   int      `yaml:"min_section_chars"`
	SkipTitlePatterns []string `yaml:"skip_title_patterns"`
	ReferencePatterns []string `yaml:"reference_patterns"`
}

type PyramidConfig struct {
	Levels []Level `yaml:"levels"`
}

// Level is one tier of the pyramid schema, root first.
type Level struct {
	Depth          int    `yaml:"depth" json:"depth"`
	Label          string `yaml:"label" json:"label"`
	MaxChildren    int    `yaml:"max_children" json:"max_children"`
	TargetChildren int    `yaml:"target_children" json:"target_children"`
}

// ModelFor returns the model hints for a call point.
func (c *ExtractionConfig) ModelFor(callPoint string) llm.Params {
	return c.Models[callPoint]
}

// HasCategory reports whether cat is in the controlled vocabulary.
func (c *ExtractionConfig) HasCategory(cat string) bool {
	for _, known := range c.Categories {
		if known == cat {
			return true
		}
	}
	return false
}

// Validate lists every missing required field in one error.
func (c *ExtractionConfig) Validate() error {
	var missing []string
	if c.ChunkSize <= 0 {
		missing = append(missing, "chunk_size")
	}
	if c.MaxAssertions <= 0 {
		missing = append(missing, "max_assertions")
	}
	if c.ChunkRetries < 0 {
		missing = append(missing, "chunk_retries")
	}
	if len(c.Categories) == 0 {
		missing = append(missing, "categories")
	}
	if c.DefaultCategory == "" {
		missing = append(missing, "default_category")
	} else if len(c.Categories) > 0 && !c.HasCategory(c.DefaultCategory) {
		missing = append(missing, "default_category (not in categories)")
	}
	if c.Classification.SampleSize <= 0 {
		missing = append(missing, "classification.sample_size")
	}
	if c.Classification.DefaultType == "" {
		missing = append(missing, "classification.default_type")
	}
	if c.Segmentation.MinCompositeChars <= 0 {
		missing = append(missing, "segmentation.min_composite_chars")
	}
	if len(c.Pyramid.Levels) == 0 {
		missing = append(missing, "pyramid.levels")
	}
	for i, l := range c.Pyramid.Levels {
		if l.Label == "" || l.MaxChildren <= 0 {
			missing = append(missing, fmt.Sprintf("pyramid.levels[%d]", i))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// ExtractionStore resolves layered extraction configs. Overrides live in
// <dir>/domains/<domain>.yaml and <dir>/types/<TYPE>.yaml; absent files are
// skipped.
type ExtractionStore struct {
	dir    string
	global map[string]any
}

// NewExtractionStore parses the embedded defaults. dir may be empty.
func NewExtractionStore(dir string) (*ExtractionStore, error) {
	global, err := parseLayer(globalDefaults)
	if err != nil {
		return nil, fmt.Errorf("parse global defaults: %w", err)
	}
	return &ExtractionStore{dir: dir, global: global}, nil
}

// layerName matches domain and type names usable as override file names.
var layerName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidLayerName reports whether name is empty or usable as an override
// file name.
func ValidLayerName(name string) bool {
	return name == "" || layerName.MatchString(name)
}

// Resolve deep-merges global ← domain ← type and validates the result.
// Domain and type must be plain names; anything else is ErrConfiguration.
func (s *ExtractionStore) Resolve(domain, docType string) (*ExtractionConfig, error) {
	if !ValidLayerName(domain) {
		return nil, fmt.Errorf("%w: invalid domain %q", ErrConfiguration, domain)
	}
	if !ValidLayerName(docType) {
		return nil, fmt.Errorf("%w: invalid document type %q", ErrConfiguration, docType)
	}
	merged := deepCopy(s.global)

	layers := []string{}
	if domain != "" {
		layers = append(layers, filepath.Join("domains", domain+".yaml"))
	}
	if docType != "" {
		layers = append(layers, filepath.Join("types", strings.ToUpper(docType)+".yaml"))
	}
	for _, rel := range layers {
		layer, err := s.readLayer(rel)
		if err != nil {
			return nil, err
		}
		merged = Merge(merged, layer)
	}

	return Decode(merged)
}

func (s *ExtractionStore) readLayer(rel string) (map[string]any, error) {
	if s.dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	layer, err := parseLayer(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	return layer, nil
}

// Decode turns a merged layer map into a validated config.
func Decode(merged map[string]any) (*ExtractionConfig, error) {
	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	var cfg ExtractionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode merged config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns the embedded global config.
func Defaults() (*ExtractionConfig, error) {
	global, err := parseLayer(globalDefaults)
	if err != nil {
		return nil, fmt.Errorf("parse global defaults: %w", err)
	}
	return Decode(global)
}

func parseLayer(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Merge overlays src onto dst. Nested maps merge recursively; every other
// value, arrays included, replaces the destination value.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, sv := range src {
		srcMap, srcIsMap := sv.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = Merge(dstMap, srcMap)
			continue
		}
		dst[k] = sv
	}
	return dst
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopy(nested)
			continue
		}
		out[k] = v
	}
	return out
}
