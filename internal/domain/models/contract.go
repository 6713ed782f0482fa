package models

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LinkReference marks where a library address must be written into creation
// bytecode. Start and Length are byte offsets.
type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// LinkReferences maps source path -> library name -> placeholder offsets
type LinkReferences map[string]map[string][]LinkReference

// Artifact is a compiled contract loaded from a Foundry or Hardhat build directory
type Artifact struct {
	Name            string
	SourcePath      string // e.g., "src/protocol/LendingPool.sol"
	FilePath        string // artifact JSON on disk
	CompilerVersion string

	ABI            abi.ABI
	Bytecode       string // creation code, hex, may contain link placeholders
	LinkReferences LinkReferences
}

// FullyQualifiedName returns path:Contract
func (a *Artifact) FullyQualifiedName() string {
	if a.SourcePath == "" {
		return a.Name
	}
	return fmt.Sprintf("%s:%s", a.SourcePath, a.Name)
}

// RequiredLibraries returns the library names the bytecode must be linked against
func (a *Artifact) RequiredLibraries() []string {
	seen := make(map[string]bool)
	var libs []string
	for _, bySource := range a.LinkReferences {
		for name := range bySource {
			if !seen[name] {
				seen[name] = true
				libs = append(libs, name)
			}
		}
	}
	sort.Strings(libs)
	return libs
}

// NeedsLinking reports whether the bytecode has library placeholders
func (a *Artifact) NeedsLinking() bool {
	return len(a.LinkReferences) > 0
}
