package workflow

import (
	"fmt"

	"github.com/rxtech-lab/auditsmart/internal/models"
)

// Stage is the position of a session in the audit, compile, deploy and mint
// workflow.
type Stage int

const (
	StageIdle Stage = iota
	StageAnalyzing
	StageAnalyzed
	StageCompiling
	StageAwaitingConstructorArgs
	StageDeploying
	StageAwaitingWalletConnect
	StageDeployed
	StageMinting
	StageMinted
)

var stageNames = map[Stage]string{
	StageIdle:                    "idle",
	StageAnalyzing:               "analyzing",
	StageAnalyzed:                "analyzed",
	StageCompiling:               "compiling",
	StageAwaitingConstructorArgs: "awaiting_constructor_args",
	StageDeploying:               "deploying",
	StageAwaitingWalletConnect:   "awaiting_wallet_connect",
	StageDeployed:                "deployed",
	StageMinting:                 "minting",
	StageMinted:                  "minted",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for stage, name := range stageNames {
		if name == string(text) {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("unknown stage: %s", text)
}

// InFlight reports whether a result-producing operation is running.
func (s Stage) InFlight() bool {
	switch s {
	case StageAnalyzing, StageCompiling, StageDeploying, StageMinting:
		return true
	}
	return false
}

// stageOf derives the stable stage a persisted session is in.
func stageOf(session *models.AuditSession) Stage {
	switch {
	case session.MintingResult != nil:
		return StageMinted
	case session.DeploymentResult != nil:
		return StageDeployed
	case session.AuditResult != nil:
		return StageAnalyzed
	default:
		return StageIdle
	}
}

// StoredStage derives the stage of persisted session fields. Malformed fields
// are ignored as they are on engine load.
func StoredStage(stored map[models.SessionField]string) Stage {
	var session models.AuditSession
	for _, field := range models.SessionFields {
		if value, ok := stored[field]; ok {
			_ = session.Apply(field, &value)
		}
	}
	return stageOf(&session)
}
