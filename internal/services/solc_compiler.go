package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/utils"
)

// SolcCompiler compiles sources in-process with solc-go instead of calling
// the remote compile endpoint. The compiler version follows the source pragma.
type SolcCompiler struct {
	compile func(version, code string) (utils.CompilationResult, error)
}

func NewSolcCompiler() *SolcCompiler {
	return &SolcCompiler{compile: utils.CompileSolidity}
}

func (c *SolcCompiler) Compile(ctx context.Context, source string) (*models.CompilationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version := utils.ExtractPragmaVersion(source)
	compiled, err := c.compile(version, source)
	if err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}

	name, err := selectDeployableContract(source, compiled)
	if err != nil {
		return nil, err
	}

	abiJSON, err := json.Marshal(compiled.Abi[name])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ABI: %w", err)
	}

	return &models.CompilationResult{
		Status:       "success",
		ABI:          abiJSON,
		Bytecode:     compiled.Bytecode[name],
		ContractName: name,
		SolcVersion:  version,
	}, nil
}

// selectDeployableContract picks the last contract declared in source that
// produced bytecode. Interfaces, libraries without code and abstract
// contracts compile to empty bytecode and are skipped.
func selectDeployableContract(source string, compiled utils.CompilationResult) (string, error) {
	selected := ""
	selectedPos := -1
	for _, name := range compiled.ContractNames() {
		if compiled.Bytecode[name] == "" {
			continue
		}
		pos := declarationIndex(source, name)
		if pos >= selectedPos {
			selected = name
			selectedPos = pos
		}
	}
	if selected == "" {
		return "", fmt.Errorf("no deployable contract found in source")
	}
	return selected, nil
}

func declarationIndex(source, name string) int {
	pattern := regexp.MustCompile(`\bcontract\s+` + regexp.QuoteMeta(name) + `\b`)
	loc := pattern.FindStringIndex(source)
	if loc == nil {
		return -1
	}
	return loc[0]
}
