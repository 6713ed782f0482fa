package artifacts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

// Link writes library addresses into the creation code at every link
// reference. Libraries are keyed by name or by path:Name. Every referenced
// library must be provided and every provided library must be referenced.
func Link(artifact *models.Artifact, libraries map[string]common.Address) ([]byte, error) {
	code := strings.TrimPrefix(artifact.Bytecode, "0x")
	if code == "" {
		return nil, fmt.Errorf("%s has no creation code (abstract contract or interface?)", artifact.Name)
	}

	buf := []byte(code)
	used := make(map[string]bool)
	var missing []string

	for source, libs := range artifact.LinkReferences {
		for lib, refs := range libs {
			key := lib
			addr, ok := libraries[lib]
			if !ok {
				key = source + ":" + lib
				addr, ok = libraries[key]
			}
			if !ok {
				missing = append(missing, lib)
				continue
			}
			used[key] = true

			hexAddr := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
			for _, ref := range refs {
				start, end := ref.Start*2, (ref.Start+ref.Length)*2
				if ref.Length != common.AddressLength || start < 0 || end > len(buf) {
					return nil, fmt.Errorf("%s: invalid link reference for %s at %d", artifact.Name, lib, ref.Start)
				}
				copy(buf[start:end], hexAddr)
			}
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s requires %s", domain.ErrUnlinkedLibrary, artifact.Name, strings.Join(missing, ", "))
	}

	var unused []string
	for key := range libraries {
		if !used[key] {
			unused = append(unused, key)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		return nil, fmt.Errorf("%s does not link against %s", artifact.Name, strings.Join(unused, ", "))
	}

	linked := string(buf)
	if strings.Contains(linked, "__") {
		return nil, fmt.Errorf("%w: %s still contains a library placeholder", domain.ErrUnlinkedLibrary, artifact.Name)
	}

	return hexutil.Decode("0x" + linked)
}
