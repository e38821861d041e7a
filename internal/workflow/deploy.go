package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/observability/metrics"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
)

// deploymentTimeLayout matches JavaScript's Date.toISOString.
const deploymentTimeLayout = "2006-01-02T15:04:05.000Z"

// RequestDeploy compiles the fixed code and deploys it. Contracts with
// constructor parameters stop in StageAwaitingConstructorArgs first.
func (e *Engine) RequestDeploy(ctx context.Context) error {
	e.mu.Lock()
	if e.stage.InFlight() {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.stage != StageAnalyzed {
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot deploy while %s", ErrInvalidStage, e.stage)
	}
	if !e.session.AuditResult.HasFixedCode() {
		e.lastErr = ErrNoFixedCode.Error()
		e.mu.Unlock()
		return ErrNoFixedCode
	}
	fixedCode := e.session.AuditResult.FixedCode
	gen := e.gen
	e.lastErr = ""
	e.setStageLocked(StageCompiling)
	e.mu.Unlock()

	compilation, err := e.compile(ctx, fixedCode)
	if err != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen == gen {
			e.compileFailed = true
		}
		return e.failLocked(gen, StageAnalyzed, "compile", fmt.Errorf("compilation failed: %w", err))
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return nil
	}
	e.compileFailed = false
	next := e.session
	next.CompilationResult = compilation
	if err := e.commitLocked(next, models.FieldCompilationResults); err != nil {
		defer e.mu.Unlock()
		return e.failLocked(gen, StageAnalyzed, "compile", err)
	}
	if len(compilation.ConstructorInputs) > 0 {
		e.setStageLocked(StageAwaitingConstructorArgs)
		e.mu.Unlock()
		e.logger.Info("waiting for constructor arguments", "contract", compilation.ContractName, "inputs", len(compilation.ConstructorInputs))
		return nil
	}
	e.setStageLocked(StageDeploying)
	e.mu.Unlock()

	return e.runDeploy(ctx, gen, nil)
}

func (e *Engine) compile(ctx context.Context, fixedCode string) (*models.CompilationResult, error) {
	compilation, err := e.compiler.Compile(ctx, fixedCode)
	if err != nil {
		return nil, err
	}
	abiJSON, err := services.ABIString(compilation.ABI)
	if err != nil {
		return nil, err
	}
	account, _ := e.wallet.GetConnectedAccount(ctx)
	inputs, err := e.evm.GetConstructorInputs(abiJSON, account)
	if err != nil {
		return nil, err
	}

	result := *compilation
	result.ConstructorInputs = inputs
	e.logger.Info("contract compiled", "contract", result.ContractName, "solc", result.SolcVersion)
	return &result, nil
}

// SubmitConstructorArgs deploys with the entered constructor values. Read-only
// inputs keep their prefilled account.
func (e *Engine) SubmitConstructorArgs(ctx context.Context, values map[string]string) error {
	e.mu.Lock()
	if e.stage != StageAwaitingConstructorArgs || e.session.CompilationResult == nil {
		state := e.stage
		e.mu.Unlock()
		return fmt.Errorf("%w: no constructor arguments requested while %s", ErrInvalidStage, state)
	}

	args := make(map[string]string, len(e.session.CompilationResult.ConstructorInputs))
	var missing []string
	for _, input := range e.session.CompilationResult.ConstructorInputs {
		if input.ReadOnly {
			args[input.Name] = input.Value
			continue
		}
		value := strings.TrimSpace(values[input.Name])
		if value == "" {
			missing = append(missing, input.Name)
			continue
		}
		args[input.Name] = value
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		err := fmt.Errorf("%w: %s", ErrMissingConstructorArgs, strings.Join(missing, ", "))
		e.lastErr = err.Error()
		e.mu.Unlock()
		return err
	}

	gen := e.gen
	e.lastErr = ""
	e.setStageLocked(StageDeploying)
	e.mu.Unlock()

	return e.runDeploy(ctx, gen, args)
}

// CancelConstructorArgs closes the constructor prompt without deploying.
func (e *Engine) CancelConstructorArgs() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stage != StageAwaitingConstructorArgs {
		return fmt.Errorf("%w: no constructor arguments requested while %s", ErrInvalidStage, e.stage)
	}
	e.setStageLocked(StageAnalyzed)
	return nil
}

// runDeploy signs and waits for the contract creation. It is entered in
// StageDeploying.
func (e *Engine) runDeploy(ctx context.Context, gen uint64, args map[string]string) error {
	account, ok := e.wallet.GetConnectedAccount(ctx)
	if !ok {
		e.mu.Lock()
		e.awaitWalletLocked(intentDeploy, gen, args)
		e.mu.Unlock()
		return nil
	}

	e.mu.Lock()
	compilation := e.session.CompilationResult
	contractName := ""
	if e.session.AuditResult != nil {
		contractName = e.session.AuditResult.ContractName
	}
	e.mu.Unlock()
	if compilation == nil {
		return e.fail(gen, StageAnalyzed, "deploy", fmt.Errorf("deployment failed: %w", ErrInvalidStage))
	}
	if contractName == "" {
		contractName = compilation.ContractName
	}

	// Address inputs always deploy from the account signing the transaction.
	ctorArgs := make(map[string]string, len(args))
	for name, value := range args {
		ctorArgs[name] = value
	}
	for _, input := range compilation.ConstructorInputs {
		if input.ReadOnly {
			ctorArgs[input.Name] = account
		}
	}

	abiJSON, err := services.ABIString(compilation.ABI)
	if err != nil {
		return e.fail(gen, StageAnalyzed, "deploy", fmt.Errorf("deployment failed: %w", err))
	}
	txData, err := e.evm.GetContractDeploymentTransaction(services.ContractDeploymentTransactionArgs{
		Abi:             abiJSON,
		Bytecode:        compilation.Bytecode,
		ConstructorArgs: ctorArgs,
	})
	if err != nil {
		return e.fail(gen, StageAnalyzed, "deploy", fmt.Errorf("deployment failed: %w", err))
	}

	receipt, err := e.signAndWait(ctx, "deploy", wallet.TxIntent{From: account, Data: txData.Data, Value: txData.Value})
	if err != nil {
		return e.fail(gen, StageAnalyzed, "deploy", fmt.Errorf("deployment failed: %w", err))
	}
	if receipt.ContractAddress == "" {
		return e.fail(gen, StageAnalyzed, "deploy", fmt.Errorf("deployment failed: receipt %s has no contract address", receipt.TransactionHash))
	}

	network := e.wallet.GetNetworkInfo(ctx)
	deployment := &models.DeploymentResult{
		Status:              "success",
		ContractAddress:     receipt.ContractAddress,
		TransactionHash:     receipt.TransactionHash,
		BlockNumber:         receipt.BlockNumber,
		GasUsed:             receipt.GasUsed,
		ContractName:        contractName,
		Network:             network.Name,
		ChainID:             network.ChainID,
		DeployedBy:          account,
		DeploymentTimestamp: e.now().UTC().Format(deploymentTimeLayout),
	}

	e.mu.Lock()
	sessionID := e.session.SessionID
	if e.gen == gen {
		next := e.session
		next.DeploymentResult = deployment
		next.DeploymentAvailable = false
		next.MintingAvailable = true
		if err := e.commitLocked(next, models.FieldDeploymentResults, models.FieldDeploymentAvailable, models.FieldMintingAvailable); err != nil {
			e.mu.Unlock()
			return e.fail(gen, StageAnalyzed, "deploy", err)
		}
		e.setStageLocked(StageDeployed)
	}
	e.mu.Unlock()

	e.logger.Info("contract deployed", "contract", contractName, "address", deployment.ContractAddress, "tx", deployment.TransactionHash)
	e.confirmed(ctx, models.ConfirmedTransaction{
		SessionID:       sessionID,
		TransactionType: models.TransactionTypeContractDeployment,
		TransactionHash: deployment.TransactionHash,
		BlockNumber:     deployment.BlockNumber,
		GasUsed:         deployment.GasUsed,
		ContractAddress: &deployment.ContractAddress,
		Deployment:      deployment,
		ConstructorArgs: ctorArgs,
	})
	return nil
}

func (e *Engine) signAndWait(ctx context.Context, kind string, intent wallet.TxIntent) (*wallet.Receipt, error) {
	pending, err := e.wallet.SignAndSend(ctx, intent)
	if err != nil {
		metrics.WalletTransaction(kind, "rejected")
		return nil, err
	}
	receipt, err := pending.Wait(ctx)
	if err != nil {
		metrics.WalletTransaction(kind, "failed")
		return nil, err
	}
	metrics.WalletTransaction(kind, "confirmed")
	return receipt, nil
}
