package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// skippedDirs are build output directories that never hold contract artifacts
var skippedDirs = map[string]bool{
	"build-info": true,
	"cache":      true,
}

// Repository loads compiled artifacts from a Foundry (out/) or Hardhat
// (artifacts/) build directory. The directory is indexed once by file name.
type Repository struct {
	dir string
	log *slog.Logger

	once     sync.Once
	index    map[string][]string // contract name -> artifact files
	indexErr error

	mu    sync.Mutex
	cache map[string]*models.Artifact // artifact file -> parsed artifact
}

// NewRepository creates a repository over the configured artifacts directory
func NewRepository(cfg *config.RuntimeConfig, log *slog.Logger) *Repository {
	return NewRepositoryAt(cfg.ArtifactsDir, log)
}

// NewRepositoryAt creates a repository over dir
func NewRepositoryAt(dir string, log *slog.Logger) *Repository {
	return &Repository{
		dir:   dir,
		log:   log.With("component", "ArtifactRepository"),
		cache: make(map[string]*models.Artifact),
	}
}

// GetArtifact finds an artifact by contract name or path:Contract
func (r *Repository) GetArtifact(ctx context.Context, name string) (*models.Artifact, error) {
	r.once.Do(r.buildIndex)
	if r.indexErr != nil {
		return nil, r.indexErr
	}

	source, contract := "", name
	if i := strings.LastIndex(name, ":"); i >= 0 {
		source, contract = name[:i], name[i+1:]
	}

	var matches []*models.Artifact
	for _, path := range r.index[contract] {
		artifact, err := r.load(path)
		if err != nil {
			return nil, err
		}
		if source != "" && artifact.SourcePath != source && !strings.HasSuffix(artifact.SourcePath, "/"+source) {
			continue
		}
		matches = append(matches, artifact)
	}

	matches = lo.UniqBy(matches, func(a *models.Artifact) string { return a.FullyQualifiedName() })

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s (looked in %s; is the project compiled?)", domain.ErrContractNotFound, name, r.dir)
	case 1:
		return matches[0], nil
	default:
		return nil, &domain.AmbiguousArtifactError{
			Name:    name,
			Matches: lo.Map(matches, func(a *models.Artifact, _ int) string { return a.FullyQualifiedName() }),
		}
	}
}

// Link substitutes library addresses into the artifact's creation code
func (r *Repository) Link(artifact *models.Artifact, libraries map[string]common.Address) ([]byte, error) {
	return Link(artifact, libraries)
}

func (r *Repository) buildIndex() {
	r.index = make(map[string][]string)
	r.indexErr = filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		base := d.Name()
		if filepath.Ext(base) != ".json" || strings.HasSuffix(base, ".dbg.json") {
			return nil
		}
		name := strings.TrimSuffix(base, ".json")
		r.index[name] = append(r.index[name], path)
		return nil
	})
	if r.indexErr != nil {
		if os.IsNotExist(r.indexErr) {
			r.indexErr = fmt.Errorf("%w: artifacts directory %s does not exist (is the project compiled?)", domain.ErrContractNotFound, r.dir)
			return
		}
		r.indexErr = fmt.Errorf("failed to index artifacts in %s: %w", r.dir, r.indexErr)
	}
	r.log.Debug("indexed artifacts", "dir", r.dir, "contracts", len(r.index))
}

func (r *Repository) load(path string) (*models.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.cache[path]; ok {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	a, err := parseArtifact(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	r.cache[path] = a
	return a, nil
}

// rawArtifact covers both the Foundry and the Hardhat artifact layouts
type rawArtifact struct {
	ContractName   string                `json:"contractName"` // Hardhat
	SourceName     string                `json:"sourceName"`   // Hardhat
	ABI            json.RawMessage       `json:"abi"`
	Bytecode       bytecodeField         `json:"bytecode"`
	LinkReferences models.LinkReferences `json:"linkReferences"` // Hardhat
	Metadata       json.RawMessage       `json:"metadata"`       // Foundry
}

// bytecodeField is a hex string (Hardhat) or an object with linkReferences (Foundry)
type bytecodeField struct {
	Object         string
	LinkReferences models.LinkReferences
}

func (b *bytecodeField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.Object)
	}
	var obj struct {
		Object         string                `json:"object"`
		LinkReferences models.LinkReferences `json:"linkReferences"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	b.Object = obj.Object
	b.LinkReferences = obj.LinkReferences
	return nil
}

// foundryMetadata is the part of the solc metadata we use
type foundryMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

func parseArtifact(path string, data []byte) (*models.Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	contractABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("invalid ABI: %w", err)
	}

	a := &models.Artifact{
		Name:           strings.TrimSuffix(filepath.Base(path), ".json"),
		SourcePath:     raw.SourceName,
		FilePath:       path,
		ABI:            contractABI,
		Bytecode:       raw.Bytecode.Object,
		LinkReferences: raw.Bytecode.LinkReferences,
	}
	if raw.ContractName != "" {
		a.Name = raw.ContractName
	}
	if len(a.LinkReferences) == 0 {
		a.LinkReferences = raw.LinkReferences
	}

	if meta, ok := parseMetadata(raw.Metadata); ok {
		a.CompilerVersion = meta.Compiler.Version
		for source, contract := range meta.Settings.CompilationTarget {
			if contract == a.Name {
				a.SourcePath = source
			}
		}
	}
	if a.SourcePath == "" && raw.SourceName == "" {
		// Foundry lays artifacts out as out/<File>.sol/<Name>.json
		a.SourcePath = filepath.Base(filepath.Dir(path))
	}
	if a.CompilerVersion == "" {
		a.CompilerVersion = hardhatCompilerVersion(path)
	}

	return a, nil
}

// parseMetadata accepts metadata as an object or as a JSON-encoded string
func parseMetadata(data json.RawMessage) (*foundryMetadata, bool) {
	if len(data) == 0 || string(data) == "null" {
		return nil, false
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, false
		}
		data = json.RawMessage(s)
	}
	var meta foundryMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

// hardhatCompilerVersion follows <Name>.dbg.json to the build-info file
func hardhatCompilerVersion(path string) string {
	dbgPath := strings.TrimSuffix(path, ".json") + ".dbg.json"
	var dbg struct {
		BuildInfo string `json:"buildInfo"`
	}
	data, err := os.ReadFile(dbgPath)
	if err != nil || json.Unmarshal(data, &dbg) != nil || dbg.BuildInfo == "" {
		return ""
	}

	data, err = os.ReadFile(filepath.Join(filepath.Dir(path), dbg.BuildInfo))
	if err != nil {
		return ""
	}
	var info struct {
		SolcLongVersion string `json:"solcLongVersion"`
		SolcVersion     string `json:"solcVersion"`
	}
	if json.Unmarshal(data, &info) != nil {
		return ""
	}
	if info.SolcLongVersion != "" {
		return info.SolcLongVersion
	}
	return info.SolcVersion
}

// Ensure the adapter implements the interface
var _ usecase.ArtifactRepository = (*Repository)(nil)
