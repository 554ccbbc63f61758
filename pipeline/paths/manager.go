package paths

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gear6io/cnpj-pipeline/pkg/errors"
)

// ComponentType defines the path manager component type identifier
const ComponentType = "paths"

// Manager resolves the local staging layout under the temp directory:
//
//	<base>/archives/<snapshot>/<name>.zip
//	<base>/extracted/<snapshot>/<member>
//	<base>/reference_cache/
type Manager struct {
	basePath string
}

// NewManager creates a new path manager
func NewManager(basePath string) *Manager {
	return &Manager{
		basePath: basePath,
	}
}

// GetBasePath returns the staging root
func (pm *Manager) GetBasePath() string {
	return pm.basePath
}

// GetArchivesPath returns the directory holding downloaded zips of a snapshot
func (pm *Manager) GetArchivesPath(snapshot string) string {
	return filepath.Join(pm.basePath, "archives", snapshot)
}

// GetArchivePath returns the local path of one archive
func (pm *Manager) GetArchivePath(snapshot, name string) string {
	return filepath.Join(pm.GetArchivesPath(snapshot), filepath.Base(name))
}

// GetPartialPath is where an archive is streamed before it is complete
func (pm *Manager) GetPartialPath(snapshot, name string) string {
	return pm.GetArchivePath(snapshot, name) + ".part"
}

// GetExtractedPath returns the directory holding extracted content files
func (pm *Manager) GetExtractedPath(snapshot string) string {
	return filepath.Join(pm.basePath, "extracted", snapshot)
}

// GetMemberPath flattens an archive member path into the extraction dir
func (pm *Manager) GetMemberPath(snapshot, member string) string {
	member = strings.ReplaceAll(member, "\\", "/")
	return filepath.Join(pm.GetExtractedPath(snapshot), filepath.Base(member))
}

// GetReferenceCachePath returns the cache dir for supplemental reference data
func (pm *Manager) GetReferenceCachePath() string {
	return filepath.Join(pm.basePath, "reference_cache")
}

// EnsureDirectoryStructure creates the staging directories for a snapshot
func (pm *Manager) EnsureDirectoryStructure(snapshot string) error {
	dirs := []string{
		pm.basePath,
		pm.GetArchivesPath(snapshot),
		pm.GetExtractedPath(snapshot),
		pm.GetReferenceCachePath(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.New(ErrDirectoryCreationFailed, "failed to create directory", err).AddContext("directory", dir)
		}
	}

	return nil
}

// Cleanup removes a snapshot's staged archives and extracted files. The
// reference cache survives across runs.
func (pm *Manager) Cleanup(snapshot string) error {
	for _, dir := range []string{pm.GetExtractedPath(snapshot), pm.GetArchivesPath(snapshot)} {
		if err := os.RemoveAll(dir); err != nil {
			return errors.New(ErrCleanupFailed, "failed to remove staging directory", err).AddContext("directory", dir)
		}
	}
	return nil
}

// GetType returns the component type identifier
func (pm *Manager) GetType() string {
	return ComponentType
}

// Shutdown is a no-op; cleanup is driven by the fetcher
func (pm *Manager) Shutdown(ctx context.Context) error {
	return nil
}
