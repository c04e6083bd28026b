package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ModelFileName is the file a saved model is stored in, inside the model
// directory.
const ModelFileName = "model.json"

// PersistentTransformer is a fitted transformer that can be stored and
// restored. Kind identifies the concrete type; the registry maps it back to
// a decoder on load.
type PersistentTransformer interface {
	Transformer
	Kind() string
}

var (
	kindsMu sync.RWMutex
	kinds   = make(map[string]func() PersistentTransformer)
)

// RegisterModelKind adds a transformer kind to the persistence registry.
// Called by transformer implementations in their init() functions. The
// factory returns an empty value for json unmarshaling.
func RegisterModelKind(kind string, factory func() PersistentTransformer) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds[kind] = factory
}

// ModelKinds returns all registered transformer kinds, sorted.
func ModelKinds() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type stageEnvelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

type modelFile struct {
	Stages []stageEnvelope `json:"stages"`
}

// Save stores the model under dir as a single JSON document. Every
// transformer in the chain must implement PersistentTransformer.
func (m *Model) Save(dir string) error {
	stages := make([]stageEnvelope, 0, len(m.transformers))
	for i, tr := range m.transformers {
		pt, ok := tr.(PersistentTransformer)
		if !ok {
			return fmt.Errorf("stage %d (%T) cannot be persisted", i, tr)
		}
		raw, err := json.Marshal(pt)
		if err != nil {
			return fmt.Errorf("encode stage %d (%s): %w", i, pt.Kind(), err)
		}
		stages = append(stages, stageEnvelope{Kind: pt.Kind(), Model: raw})
	}

	data, err := json.MarshalIndent(modelFile{Stages: stages}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create model dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, ModelFileName)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write model %s: %w", path, err)
	}
	m.logger.Info("model saved", "path", path, "stages", len(stages))
	return nil
}

// LoadModel restores a model saved with Save. Every stage kind in the file
// must have been registered, typically by importing the packages that define
// the transformers.
func LoadModel(dir string, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	path := filepath.Join(dir, ModelFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}

	transformers := make([]Transformer, 0, len(mf.Stages))
	for i, env := range mf.Stages {
		kindsMu.RLock()
		factory, ok := kinds[env.Kind]
		kindsMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("model %s: stage %d has unknown kind %q (registered: %v)",
				path, i, env.Kind, ModelKinds())
		}
		tr := factory()
		if err := json.Unmarshal(env.Model, tr); err != nil {
			return nil, fmt.Errorf("model %s: decode stage %d (%s): %w", path, i, env.Kind, err)
		}
		transformers = append(transformers, tr)
	}
	logger.Debug("model loaded", "path", path, "stages", len(transformers))
	return &Model{transformers: transformers, logger: logger}, nil
}
