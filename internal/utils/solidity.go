package utils

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rxtech-lab/solc-go"
)

// DefaultSolcVersion is used when the source has no parseable pragma.
const DefaultSolcVersion = "0.8.19"

const sourceFileName = "contract.sol"

var pragmaPattern = regexp.MustCompile(`pragma\s+solidity\s+[\^>=<~]*\s*(\d+\.\d+(?:\.\d+)?)`)

type CompilationResult struct {
	Bytecode map[string]string
	Abi      map[string]any
}

// ContractNames returns the compiled contract names in sorted order.
func (r CompilationResult) ContractNames() []string {
	names := make([]string, 0, len(r.Bytecode))
	for name := range r.Bytecode {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExtractPragmaVersion returns the compiler version named by the first
// `pragma solidity` line, e.g. "^0.8.20" yields "0.8.20" and "^0.8" yields
// "0.8.0".
func ExtractPragmaVersion(code string) string {
	match := pragmaPattern.FindStringSubmatch(code)
	if len(match) < 2 {
		return DefaultSolcVersion
	}
	if strings.Count(match[1], ".") == 1 {
		return match[1] + ".0"
	}
	return match[1]
}

func CompileSolidity(version string, code string) (CompilationResult, error) {
	compiler, err := solc.NewWithVersion(version)
	if err != nil {
		return CompilationResult{}, fmt.Errorf("failed to load solc %s: %w", version, err)
	}

	opts := solc.CompileOptions{
		ImportCallback: func(u string) solc.ImportResult {
			return solc.ImportResult{
				Error: fmt.Sprintf("Import %s not found", u),
			}
		},
	}
	result, err := compiler.CompileWithOptions(&solc.Input{
		Language: "Solidity",
		Sources: map[string]solc.SourceIn{
			sourceFileName: {
				Content: code,
			},
		},
		Settings: solc.Settings{
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": []string{"abi", "evm.bytecode"},
				},
			},
		},
	}, &opts)
	if err != nil {
		return CompilationResult{}, err
	}

	if err := compilationError(result.Errors); err != nil {
		return CompilationResult{}, err
	}

	bytecodeMap := make(map[string]string)
	abiMap := make(map[string]any)

	for fileName, contracts := range result.Contracts {
		if fileName != sourceFileName {
			continue
		}
		for contractName, contract := range contracts {
			bytecodeMap[contractName] = contract.EVM.Bytecode.Object
			abiMap[contractName] = contract.ABI
		}
	}

	if len(bytecodeMap) == 0 {
		return CompilationResult{}, fmt.Errorf("no contracts found in source")
	}

	return CompilationResult{
		Bytecode: bytecodeMap,
		Abi:      abiMap,
	}, nil
}

// compilationError reports the diagnostics of error severity. Warnings and
// info messages do not fail the compile.
func compilationError(diagnostics []solc.Error) error {
	var messages []string
	for _, diagnostic := range diagnostics {
		if !strings.EqualFold(diagnostic.Severity, "error") {
			continue
		}
		message := diagnostic.FormattedMessage
		if message == "" {
			message = diagnostic.Message
		}
		messages = append(messages, strings.TrimSpace(message))
	}
	if len(messages) == 0 {
		return nil
	}
	return fmt.Errorf("compilation errors: %s", strings.Join(messages, "; "))
}
