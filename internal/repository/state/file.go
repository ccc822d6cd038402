package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/squ-clock/internal/config"
	"github.com/oshokin/squ-clock/internal/domain/clock"
)

// Settings is the persisted clock state.
type Settings struct {
	// Clock is the last tempo and swing.
	Clock clock.Config `yaml:"clock"`
	// Source is the last active clock source.
	Source clock.SourceKind `yaml:"source"`
	// SavedAt is when the settings were written.
	SavedAt time.Time `yaml:"saved_at"`
}

// Repository defines persistence operations for the clock settings.
type Repository interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
}

// FileRepository persists the settings to a YAML file on disk.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads and writes YAML at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the settings from disk. Out of range values are clamped.
func (r *FileRepository) Load(_ context.Context) (*Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var settings Settings
	if err = yaml.Unmarshal(contents, &settings); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	settings.Clock = settings.Clock.Clamp()

	return &settings, nil
}

// Save writes the settings to disk, stamping SavedAt when it is unset.
func (r *FileRepository) Save(_ context.Context, settings *Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *settings
	if stored.SavedAt.IsZero() {
		stored.SavedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}
