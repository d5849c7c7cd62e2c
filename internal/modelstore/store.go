// Package modelstore owns the trained model artifacts on disk. Each training
// run is written to its own directory, versions/<version>/, holding
// baseline_model.json, xgboost_model.json and manifest.json. The root
// manifest.json names the current version and is the only file replaced in
// place, so readers see either the previous run or the new one, never a mix.
// Every load re-reads the files; callers cache if they need to.
package modelstore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/paxcast/core/model"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
	"github.com/YuminosukeSato/paxcast/sklearn/xgboost"
)

// Artifact file names.
const (
	BaselineFile  = "baseline_model.json"
	RegressorFile = "xgboost_model.json"
	ManifestFile  = "manifest.json"
)

// VersionsDir holds one subdirectory per committed version.
const VersionsDir = "versions"

// baselineArtifact is the on-disk shape of the baseline model.
type baselineArtifact struct {
	BaselineValue float64 `json:"baseline_value"`
}

// Manifest describes the artifacts written by one training run.
type Manifest struct {
	Version         string    `json:"version"`
	TrainedAt       time.Time `json:"trained_at"`
	Samples         int       `json:"samples"`
	BaselineSamples int       `json:"baseline_samples"`
	BaselineValue   float64   `json:"baseline_value"`
}

// NewManifest stamps a fresh version id and training time.
func NewManifest(samples, baselineSamples int, baseline float64) Manifest {
	return Manifest{
		Version:         uuid.NewString(),
		TrainedAt:       time.Now().UTC(),
		Samples:         samples,
		BaselineSamples: baselineSamples,
		BaselineValue:   baseline,
	}
}

// Store reads and writes artifacts under Dir.
type Store struct {
	dir    string
	logger log.Logger

	// publish は root manifest を確定する。テストで差し替える
	publish func(p *renameio.PendingFile) error
}

// New creates the directory if needed and returns a Store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, VersionsDir), 0o755); err != nil {
		return nil, pkgerrors.NewPersistenceError("create model dir", err)
	}
	return &Store{
		dir:     dir,
		logger:  log.GetLoggerWithName("modelstore"),
		publish: (*renameio.PendingFile).CloseAtomicallyReplace,
	}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) versionDir(version string) string {
	return filepath.Join(s.dir, VersionsDir, version)
}

// current resolves name inside the version named by the root manifest.
func (s *Store) current(name string) (string, error) {
	m, err := s.Manifest()
	if err != nil {
		return "", err
	}
	if m.Version == "" {
		return "", pkgerrors.NewPersistenceError("read manifest", pkgerrors.New("manifest has no version"))
	}
	return filepath.Join(s.versionDir(m.Version), name), nil
}

// SaveBaseline publishes a new version with the given baseline. The current
// regressor, if any, is carried over.
func (s *Store) SaveBaseline(value float64) error {
	m := s.nextManifest()
	m.BaselineValue = value
	return s.commit(m, []artifact{{BaselineFile, baselineArtifact{BaselineValue: value}}})
}

// LoadBaseline returns the stored baseline value, or NotFoundError before any save.
func (s *Store) LoadBaseline() (float64, error) {
	path, err := s.current(BaselineFile)
	if err != nil {
		return 0, err
	}
	var a baselineArtifact
	if err := model.LoadJSON(path, &a); err != nil {
		return 0, err
	}
	return a.BaselineValue, nil
}

// SaveRegressor publishes a new version with the given regressor. The
// current baseline, if any, is carried over.
func (s *Store) SaveRegressor(m *xgboost.XGBRegressor) error {
	return s.commit(s.nextManifest(), []artifact{{RegressorFile, m}})
}

// LoadRegressor returns the stored regressor, or NotFoundError before any save.
func (s *Store) LoadRegressor() (*xgboost.XGBRegressor, error) {
	path, err := s.current(RegressorFile)
	if err != nil {
		return nil, err
	}
	return xgboost.Load(path)
}

// Manifest returns the manifest of the last committed training run.
func (s *Store) Manifest() (Manifest, error) {
	var m Manifest
	if err := model.LoadJSON(filepath.Join(s.dir, ManifestFile), &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Commit publishes the baseline, the regressor and the manifest as one
// version. Nothing a reader can see changes unless every step succeeds.
func (s *Store) Commit(baseline float64, reg *xgboost.XGBRegressor, manifest Manifest) error {
	return s.commit(manifest, []artifact{
		{BaselineFile, baselineArtifact{BaselineValue: baseline}},
		{RegressorFile, reg},
	})
}

type artifact struct {
	name string
	v    interface{}
}

// nextManifest copies the current manifest under a fresh version id.
func (s *Store) nextManifest() Manifest {
	next := NewManifest(0, 0, 0)
	if prev, err := s.Manifest(); err == nil {
		next.Samples = prev.Samples
		next.BaselineSamples = prev.BaselineSamples
		next.BaselineValue = prev.BaselineValue
	}
	return next
}

// commit writes arts into versions/<manifest.Version>/, carries over the
// artifacts of the current version that arts does not replace, and then
// swaps the root manifest.
func (s *Store) commit(manifest Manifest, arts []artifact) (err error) {
	defer pkgerrors.Recover(&err, "modelstore.Commit")

	if v := manifest.Version; v == "" || v == "." || v == ".." || filepath.Base(v) != v {
		return pkgerrors.NewValidationError("manifest.version", "must be a plain directory name", v)
	}
	dir := s.versionDir(manifest.Version)
	if _, statErr := os.Stat(dir); statErr == nil {
		return pkgerrors.NewValidationError("manifest.version", "version already exists", manifest.Version)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.NewPersistenceError("create version dir", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(dir)
		}
	}()

	written := make(map[string]bool, len(arts))
	for _, a := range arts {
		if err := model.SaveJSON(filepath.Join(dir, a.name), a.v); err != nil {
			return err
		}
		written[a.name] = true
	}
	for _, name := range []string{BaselineFile, RegressorFile} {
		if written[name] {
			continue
		}
		if err := s.carryOver(name, dir); err != nil {
			return err
		}
	}
	if err := model.SaveJSON(filepath.Join(dir, ManifestFile), manifest); err != nil {
		return err
	}

	prev, _ := s.Manifest()
	pending, err := model.StageJSON(filepath.Join(s.dir, ManifestFile), manifest)
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()
	if err := s.publish(pending); err != nil {
		return pkgerrors.NewPersistenceError("replace "+ManifestFile, err)
	}
	published = true

	s.prune(manifest.Version, prev.Version)
	s.logger.Info("model artifacts committed",
		log.ModelVersionKey, manifest.Version,
		log.SamplesKey, manifest.Samples,
		log.PathKey, dir)
	return nil
}

// carryOver copies name from the current version into dir. A missing
// artifact stays missing.
func (s *Store) carryOver(name, dir string) error {
	src, err := s.current(name)
	if err != nil {
		var nf *pkgerrors.NotFoundError
		if pkgerrors.As(err, &nf) {
			return nil
		}
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pkgerrors.NewPersistenceError("read "+src, err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return pkgerrors.NewPersistenceError("write "+name, err)
	}
	return nil
}

// prune removes every version directory except the current and previous
// ones. Readers that resolved the previous manifest can still finish.
func (s *Store) prune(keep ...string) {
	root := filepath.Join(s.dir, VersionsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		s.logger.Warn("listing versions failed", log.PathKey, root, log.ErrAttrKey, err.Error())
		return
	}
	kept := make(map[string]bool, len(keep))
	for _, v := range keep {
		kept[v] = true
	}
	for _, e := range entries {
		if !e.IsDir() || kept[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			s.logger.Warn("removing old version failed", log.PathKey, e.Name(), log.ErrAttrKey, err.Error())
		}
	}
}
