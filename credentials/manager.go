package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/haowjy/unillm-go"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// DefaultPath returns the credentials file under the user config directory,
// e.g. ~/.config/unillm/credentials.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "unillm", credentialsFile), nil
}

// Manager reads and writes a credentials.toml file.
type Manager struct {
	path string
}

// NewManager creates a Manager for path. An empty path means DefaultPath().
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	return &Manager{path: path}, nil
}

// Path returns the credentials file location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the file. A missing file yields an empty File.
func (m *Manager) Load() (*File, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{Version: currentVersion, Providers: make(map[string]ProviderEntry)}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	file := &File{}
	if err := toml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if file.Providers == nil {
		file.Providers = make(map[string]ProviderEntry)
	}
	return file, nil
}

// Save writes the file with 0600 permissions, creating its directory.
func (m *Manager) Save(file *File) error {
	if file == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(file); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	if err := os.WriteFile(m.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(m.path, 0o600)
}

// Set stores the credential for a provider, replacing any previous entry.
func (m *Manager) Set(provider llmprovider.ProviderID, entry ProviderEntry) error {
	if !provider.IsValid() {
		return fmt.Errorf("unknown provider %q", provider)
	}
	file, err := m.Load()
	if err != nil {
		return err
	}
	file.Providers[provider.String()] = entry
	return m.Save(file)
}

// Get returns the stored credential for a provider.
func (m *Manager) Get(provider llmprovider.ProviderID) (ProviderEntry, bool, error) {
	file, err := m.Load()
	if err != nil {
		return ProviderEntry{}, false, err
	}
	entry, ok := file.Providers[provider.String()]
	return entry, ok, nil
}

// Remove deletes the stored credential for a provider.
func (m *Manager) Remove(provider llmprovider.ProviderID) error {
	file, err := m.Load()
	if err != nil {
		return err
	}
	delete(file.Providers, provider.String())
	return m.Save(file)
}

// List returns the names of providers with stored credentials, sorted.
func (m *Manager) List() ([]string, error) {
	file, err := m.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(file.Providers))
	for name := range file.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Source returns the manager's file as a discovery source.
func (m *Manager) Source() Source {
	return TOMLFile(m.path)
}
