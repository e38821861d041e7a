package workflow

import "github.com/rxtech-lab/auditsmart/internal/models"

// View is a consistent snapshot of the engine for presentation. The boolean
// flags are derived from Stage and never stored.
type View struct {
	SessionID string             `json:"session_id"`
	Stage     Stage              `json:"stage"`
	Error     string             `json:"error,omitempty"`
	Source    models.SourceInput `json:"source"`

	AuditResult       *models.AuditResult       `json:"results,omitempty"`
	CompilationResult *models.CompilationResult `json:"compilation_results,omitempty"`
	DeploymentResult  *models.DeploymentResult  `json:"deployment_results,omitempty"`
	MintingResult     *models.MintingResult     `json:"minting_results,omitempty"`

	DeploymentAvailable bool `json:"deployment_available"`
	MintingAvailable    bool `json:"minting_available"`

	// ConstructorInputs is set while the constructor args prompt is open.
	ConstructorInputs []models.ConstructorInput `json:"constructor_inputs,omitempty"`
	// PendingAction names the operation waiting for a wallet connection.
	PendingAction string `json:"pending_action,omitempty"`

	WalletAvailable bool   `json:"wallet_available"`
	Account         string `json:"account,omitempty"`

	IsAnalyzing           bool `json:"is_analyzing"`
	IsCompiling           bool `json:"is_compiling"`
	IsDeploying           bool `json:"is_deploying"`
	IsMinting             bool `json:"is_minting"`
	ShowDeploymentPrompt  bool `json:"show_deployment_prompt"`
	ShowMintingPrompt     bool `json:"show_minting_prompt"`
	ShowConstructorPrompt bool `json:"show_constructor_prompt"`
	AwaitingWallet        bool `json:"awaiting_wallet"`
	HasUnsavedState       bool `json:"has_unsaved_state"`
}

func (e *Engine) viewLocked() View {
	session := e.session
	view := View{
		SessionID:           session.SessionID,
		Stage:               e.stage,
		Error:               e.lastErr,
		Source:              session.Source,
		AuditResult:         session.AuditResult,
		CompilationResult:   session.CompilationResult,
		DeploymentResult:    session.DeploymentResult,
		MintingResult:       session.MintingResult,
		DeploymentAvailable: session.DeploymentAvailable,
		MintingAvailable:    session.MintingAvailable,
		WalletAvailable:     e.wallet.IsAvailable(),
		Account:             e.account,
	}

	if e.stage == StageAwaitingConstructorArgs && session.CompilationResult != nil {
		view.ConstructorInputs = append([]models.ConstructorInput(nil), session.CompilationResult.ConstructorInputs...)
	}
	if e.pending != nil {
		view.PendingAction = string(e.pending.kind)
	}

	view.IsAnalyzing = e.stage == StageAnalyzing
	view.IsCompiling = e.stage == StageCompiling
	view.IsDeploying = e.stage == StageDeploying
	view.IsMinting = e.stage == StageMinting
	view.ShowDeploymentPrompt = e.stage == StageAnalyzed && session.DeploymentAvailable &&
		session.AuditResult.HasFixedCode() && !e.compileFailed
	view.ShowMintingPrompt = e.stage == StageDeployed && session.MintingAvailable
	view.ShowConstructorPrompt = e.stage == StageAwaitingConstructorArgs
	view.AwaitingWallet = e.stage == StageAwaitingWalletConnect
	view.HasUnsavedState = e.stage.InFlight() || session.HasResults()
	return view
}
