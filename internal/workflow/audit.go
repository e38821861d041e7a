package workflow

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/auditsmart/internal/models"
)

// resultFields are cleared together whenever a new audit starts.
var resultFields = []models.SessionField{
	models.FieldResults,
	models.FieldCompilationResults,
	models.FieldDeploymentResults,
	models.FieldMintingResults,
	models.FieldDeploymentAvailable,
	models.FieldMintingAvailable,
}

// Submit sends the active source to the audit service. Every previous result
// is discarded first.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.stage.InFlight() {
		e.mu.Unlock()
		return ErrBusy
	}
	source := e.session.Source
	if source.IsEmpty() {
		e.lastErr = ErrEmptySource.Error()
		e.mu.Unlock()
		return ErrEmptySource
	}

	next := e.session
	next.ClearResults()
	if err := e.commitLocked(next, resultFields...); err != nil {
		e.lastErr = err.Error()
		e.mu.Unlock()
		return err
	}
	e.gen++
	gen := e.gen
	e.pending = nil
	e.lastErr = ""
	e.compileFailed = false
	e.setStageLocked(StageAnalyzing)
	e.mu.Unlock()

	account, _ := e.wallet.GetConnectedAccount(ctx)
	e.logger.Info("submitting contract for audit", "file", source.UploadName(), "bytes", len(source.Code))

	result, err := e.audit.Analyze(ctx, source, account)
	if err != nil {
		return e.fail(gen, StageIdle, "analyze", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return nil
	}

	next = e.session
	next.AuditResult = result
	next.DeploymentAvailable = result.HasFixedCode()
	if err := e.commitLocked(next, models.FieldResults, models.FieldDeploymentAvailable); err != nil {
		return e.failLocked(gen, StageIdle, "analyze", fmt.Errorf("failed to store audit result: %w", err))
	}
	e.setStageLocked(StageAnalyzed)
	e.logger.Info("audit completed", "contract", result.ContractName, "vulnerabilities", len(result.Vulnerabilities), "fixed_code", result.HasFixedCode())
	return nil
}
