package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_FullFlow(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageIdle, view.Stage)
	assert.False(t, view.HasUnsavedState)
	assert.True(t, view.WalletAvailable)
	assert.Equal(t, f.account(), view.Account)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))

	view = f.engine.Snapshot()
	assert.Equal(t, workflow.StageAnalyzed, view.Stage)
	require.NotNil(t, view.AuditResult)
	assert.Equal(t, fixedContract, view.AuditResult.FixedCode)
	assert.True(t, view.DeploymentAvailable)
	assert.True(t, view.ShowDeploymentPrompt)
	assert.True(t, view.HasUnsavedState)
	assert.NotNil(t, f.stored(t, models.FieldResults))

	require.NoError(t, f.engine.RequestDeploy(ctx))

	view = f.engine.Snapshot()
	assert.Equal(t, workflow.StageDeployed, view.Stage)
	require.NotNil(t, view.CompilationResult)
	require.NotNil(t, view.DeploymentResult)
	deployment := view.DeploymentResult
	assert.Equal(t, "success", deployment.Status)
	assert.Equal(t, "Vault", deployment.ContractName)
	assert.Equal(t, "Localhost", deployment.Network)
	assert.Equal(t, "1337", deployment.ChainID)
	assert.Equal(t, f.account(), deployment.DeployedBy)
	assert.Equal(t, "2025-03-14T09:26:53.000Z", deployment.DeploymentTimestamp)
	assert.NotEmpty(t, deployment.ContractAddress)
	assert.False(t, view.DeploymentAvailable)
	assert.True(t, view.MintingAvailable)
	assert.True(t, view.ShowMintingPrompt)

	record, err := f.deployments.GetDeploymentByTransactionHash(deployment.TransactionHash)
	require.NoError(t, err)
	assert.Equal(t, deployment.ContractAddress, record.ContractAddress)
	assert.Equal(t, f.engine.SessionID(), record.SessionID)
	assert.Equal(t, models.TransactionStatusConfirmed, record.Status)

	require.NoError(t, f.engine.RequestMint(ctx))

	view = f.engine.Snapshot()
	assert.Equal(t, workflow.StageMinted, view.Stage)
	assert.False(t, view.MintingAvailable)
	assert.False(t, view.ShowMintingPrompt)
	require.NotNil(t, view.MintingResult)
	minting := view.MintingResult
	assert.Equal(t, "1", minting.TokenID)
	assert.Equal(t, "https://ipfs.io/ipfs/bafymeta", minting.TokenURI)
	assert.Equal(t, f.backend.nftAddress, minting.NFTContract)
	assert.Equal(t, f.account(), minting.Recipient)
	assert.Equal(t, workflow.DefaultImageGateway+workflow.DefaultImageCIDs[0], minting.Metadata.Image)
	assert.Equal(t, workflow.DefaultNetworkLabel, minting.Metadata.Network)

	reports := f.backend.reported()
	require.Len(t, reports, 1)
	assert.Equal(t, "1", reports[0]["token_id"])
	assert.Equal(t, minting.TransactionHash, reports[0]["transaction_hash"])
	assert.Empty(t, view.CompilationResult.ConstructorInputs)
}

func TestEngine_SubmitEmptySource(t *testing.T) {
	f := newFixture(t, walletConnected())

	err := f.engine.Submit(testContext(t))
	require.ErrorIs(t, err, workflow.ErrEmptySource)
	assert.True(t, workflow.IsValidationError(err))

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageIdle, view.Stage)
	assert.Equal(t, "please upload a file or paste contract code", view.Error)
	assert.Zero(t, f.backend.count("/audit-only"))
}

func TestEngine_AuditFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t, walletConnected())
	f.backend.set(func(b *fakeAuditBackend) { b.auditFail = true })

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	err := f.engine.Submit(testContext(t))
	require.Error(t, err)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageIdle, view.Stage)
	assert.Equal(t, "slither crashed", view.Error)
	assert.Nil(t, view.AuditResult)

	f.engine.DismissError()
	assert.Empty(t, f.engine.Snapshot().Error)
}

func TestEngine_SubmitWhileAnalyzingIsBusy(t *testing.T) {
	f := newFixture(t, walletConnected())
	started, release := make(chan struct{}), make(chan struct{})
	f.backend.set(func(b *fakeAuditBackend) {
		b.started = started
		b.release = release
	})

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	done := make(chan error, 1)
	go func() { done <- f.engine.Submit(context.Background()) }()
	<-started

	view := f.engine.Snapshot()
	assert.True(t, view.IsAnalyzing)
	assert.True(t, view.HasUnsavedState)

	err := f.engine.Submit(testContext(t))
	assert.ErrorIs(t, err, workflow.ErrBusy)
	assert.True(t, workflow.IsConflictError(err))
	assert.ErrorIs(t, f.engine.RequestDeploy(testContext(t)), workflow.ErrBusy)
	assert.ErrorIs(t, f.engine.RequestMint(testContext(t)), workflow.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, workflow.StageAnalyzed, f.engine.Snapshot().Stage)
	assert.Equal(t, 1, f.backend.count("/audit-only"))
}

func TestEngine_ResubmitClearsResultChain(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))
	require.Equal(t, workflow.StageDeployed, f.engine.Snapshot().Stage)

	f.backend.set(func(b *fakeAuditBackend) { b.auditFail = true })
	require.Error(t, f.engine.Submit(ctx))

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageIdle, view.Stage)
	assert.Nil(t, view.AuditResult)
	assert.Nil(t, view.CompilationResult)
	assert.Nil(t, view.DeploymentResult)
	assert.False(t, view.MintingAvailable)
	for _, field := range []models.SessionField{
		models.FieldResults,
		models.FieldCompilationResults,
		models.FieldDeploymentResults,
		models.FieldMintingAvailable,
	} {
		assert.Nil(t, f.stored(t, field), field)
	}
	assert.NotNil(t, f.stored(t, models.FieldPastedCode))
}

func TestEngine_DeployRequiresFixedCode(t *testing.T) {
	f := newFixture(t, walletConnected())
	f.backend.set(func(b *fakeAuditBackend) { b.fixedCode = "" })
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))

	view := f.engine.Snapshot()
	assert.False(t, view.DeploymentAvailable)
	assert.False(t, view.ShowDeploymentPrompt)

	assert.ErrorIs(t, f.engine.RequestDeploy(ctx), workflow.ErrNoFixedCode)
	assert.Zero(t, f.backend.count("/compile-only"))
}

func TestEngine_DeployOutsideAnalyzed(t *testing.T) {
	f := newFixture(t, walletConnected())

	err := f.engine.RequestDeploy(testContext(t))
	assert.ErrorIs(t, err, workflow.ErrInvalidStage)
	assert.True(t, workflow.IsConflictError(err))

	assert.ErrorIs(t, f.engine.RequestMint(testContext(t)), workflow.ErrNoDeployment)
}

func TestEngine_ConstructorArgs(t *testing.T) {
	f := newFixture(t, walletConnected())
	f.backend.set(func(b *fakeAuditBackend) { b.abi = ctorABI })
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))

	view := f.engine.Snapshot()
	require.Equal(t, workflow.StageAwaitingConstructorArgs, view.Stage)
	assert.True(t, view.ShowConstructorPrompt)
	require.Len(t, view.ConstructorInputs, 2)
	assert.Equal(t, "owner", view.ConstructorInputs[0].Name)
	assert.True(t, view.ConstructorInputs[0].ReadOnly)
	assert.Equal(t, f.account(), view.ConstructorInputs[0].Value)
	assert.Equal(t, "supply", view.ConstructorInputs[1].Name)
	assert.False(t, view.ConstructorInputs[1].ReadOnly)

	t.Run("missing values are reported", func(t *testing.T) {
		err := f.engine.SubmitConstructorArgs(ctx, map[string]string{"supply": "  "})
		require.ErrorIs(t, err, workflow.ErrMissingConstructorArgs)
		assert.Contains(t, err.Error(), "supply")
		assert.Equal(t, workflow.StageAwaitingConstructorArgs, f.engine.Snapshot().Stage)
	})

	t.Run("cancel returns to analyzed", func(t *testing.T) {
		require.NoError(t, f.engine.CancelConstructorArgs())
		assert.Equal(t, workflow.StageAnalyzed, f.engine.Snapshot().Stage)
		assert.ErrorIs(t, f.engine.CancelConstructorArgs(), workflow.ErrInvalidStage)
	})

	t.Run("submitted values deploy", func(t *testing.T) {
		require.NoError(t, f.engine.RequestDeploy(ctx))
		require.Equal(t, workflow.StageAwaitingConstructorArgs, f.engine.Snapshot().Stage)

		require.NoError(t, f.engine.SubmitConstructorArgs(ctx, map[string]string{
			"owner":  "0x000000000000000000000000000000000000dEaD",
			"supply": "1000",
		}))
		view := f.engine.Snapshot()
		require.Equal(t, workflow.StageDeployed, view.Stage)

		record, err := f.deployments.GetDeploymentByTransactionHash(view.DeploymentResult.TransactionHash)
		require.NoError(t, err)
		assert.Equal(t, "1000", record.ConstructorArgs["supply"])
		assert.Equal(t, f.account(), record.ConstructorArgs["owner"])
	})
}

func TestEngine_DeployWaitsForWallet(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))

	view := f.engine.Snapshot()
	require.Equal(t, workflow.StageAwaitingWalletConnect, view.Stage)
	assert.True(t, view.AwaitingWallet)
	assert.Equal(t, "deploy", view.PendingAction)
	assert.Empty(t, view.Account)

	account, err := f.engine.ConnectWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.account(), account)

	view = f.engine.Snapshot()
	assert.Equal(t, workflow.StageDeployed, view.Stage)
	assert.Empty(t, view.PendingAction)
	assert.Equal(t, f.account(), view.Account)
	require.NotNil(t, view.DeploymentResult)
	assert.Equal(t, f.account(), view.DeploymentResult.DeployedBy)
}

func TestEngine_AccountChangeResumesDeploy(t *testing.T) {
	f := newFixture(t)
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))
	require.Equal(t, workflow.StageAwaitingWalletConnect, f.engine.Snapshot().Stage)

	// The user connects from the wallet itself rather than through the engine.
	_, err := f.provider.RequestAccounts(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.engine.Snapshot().Stage == workflow.StageDeployed
	}, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, f.account(), f.engine.Snapshot().Account)
}

func TestEngine_RejectedConnectionRestoresStage(t *testing.T) {
	f := newFixture(t, withApprover(func(_ context.Context, req wallet.ApprovalRequest) bool {
		return req.Kind != wallet.ApprovalConnect
	}))
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))
	require.Equal(t, workflow.StageAwaitingWalletConnect, f.engine.Snapshot().Stage)

	_, err := f.engine.ConnectWallet(ctx)
	require.ErrorIs(t, err, wallet.ErrUserRejected)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageAnalyzed, view.Stage)
	assert.Empty(t, view.PendingAction)
	assert.Contains(t, view.Error, "failed to connect wallet")
	assert.Nil(t, view.DeploymentResult)
}

func TestEngine_RejectedTransactionFailsDeploy(t *testing.T) {
	f := newFixture(t, walletConnected(), withApprover(func(_ context.Context, req wallet.ApprovalRequest) bool {
		return req.Kind != wallet.ApprovalTransaction
	}))
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))

	err := f.engine.RequestDeploy(ctx)
	require.ErrorIs(t, err, wallet.ErrTransactionRejected)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageAnalyzed, view.Stage)
	assert.Contains(t, view.Error, "deployment failed")
	assert.Nil(t, view.DeploymentResult)
	assert.NotNil(t, view.CompilationResult)
}

func TestEngine_MintFailureReturnsToDeployed(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))

	f.backend.set(func(b *fakeAuditBackend) { b.pinFail = true })
	err := f.engine.RequestMint(ctx)
	require.Error(t, err)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageDeployed, view.Stage)
	assert.Contains(t, view.Error, "NFT minting failed: ")
	assert.Contains(t, view.Error, "non-JSON response")
	assert.Nil(t, view.MintingResult)
	assert.True(t, view.MintingAvailable)
	assert.Zero(t, f.backend.count("/nft-config"))
}

func TestEngine_DuplicateMintingReportIsIgnored(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))

	f.backend.set(func(b *fakeAuditBackend) { b.reportStatus = http.StatusBadRequest })
	require.NoError(t, f.engine.RequestMint(ctx))

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageMinted, view.Stage)
	assert.Empty(t, view.Error)
	require.NotNil(t, view.MintingResult)
	assert.Equal(t, "1", view.MintingResult.TokenID)
	assert.Len(t, f.backend.reported(), 1)

	stored := f.stored(t, models.FieldMintingResults)
	require.NotNil(t, stored)
	var persisted models.MintingResult
	require.NoError(t, json.Unmarshal([]byte(*stored), &persisted))
	assert.Equal(t, view.MintingResult.TransactionHash, persisted.TransactionHash)
	assert.Equal(t, view.MintingResult.TokenID, persisted.TokenID)
}

func TestEngine_CompileFailureHidesDeploymentPrompt(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.True(t, f.engine.Snapshot().ShowDeploymentPrompt)

	f.backend.set(func(b *fakeAuditBackend) { b.compileFail = true })
	err := f.engine.RequestDeploy(ctx)
	require.Error(t, err)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageAnalyzed, view.Stage)
	assert.Contains(t, view.Error, "compilation failed")
	assert.False(t, view.ShowDeploymentPrompt)
	require.NotNil(t, view.AuditResult)
	assert.Equal(t, fixedContract, view.AuditResult.FixedCode)
	assert.Nil(t, view.CompilationResult)

	// An explicit retry is still accepted.
	f.backend.set(func(b *fakeAuditBackend) { b.compileFail = false })
	require.NoError(t, f.engine.RequestDeploy(ctx))
	assert.Equal(t, workflow.StageDeployed, f.engine.Snapshot().Stage)

	// A new audit shows the prompt again.
	f.backend.set(func(b *fakeAuditBackend) { b.compileFail = true })
	require.NoError(t, f.engine.Submit(ctx))
	assert.True(t, f.engine.Snapshot().ShowDeploymentPrompt)
}

func TestEngine_MintWithoutTransferEvent(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))

	// A contract that accepts the call but never logs a Transfer.
	stub := f.engine.Snapshot().DeploymentResult.ContractAddress
	f.backend.set(func(b *fakeAuditBackend) { b.nftAddress = stub })
	require.NoError(t, f.engine.RequestMint(ctx))

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageMinted, view.Stage)
	require.NotNil(t, view.MintingResult)
	assert.Equal(t, models.UnknownTokenID, view.MintingResult.TokenID)
}

func TestEngine_ResetKeepsSessionID(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)
	sessionID := f.engine.SessionID()

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.Reset())

	view := f.engine.Snapshot()
	assert.Equal(t, sessionID, view.SessionID)
	assert.Equal(t, workflow.StageIdle, view.Stage)
	assert.True(t, view.Source.IsEmpty())
	assert.Nil(t, view.AuditResult)
	assert.False(t, view.HasUnsavedState)

	stored, err := f.store.Load(sessionID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	current, err := f.store.CurrentSessionID()
	require.NoError(t, err)
	assert.Equal(t, sessionID, current)
}

func TestEngine_ResetWhileInFlightIsBusy(t *testing.T) {
	f := newFixture(t, walletConnected())
	started, release := make(chan struct{}), make(chan struct{})
	f.backend.set(func(b *fakeAuditBackend) {
		b.started = started
		b.release = release
	})

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	done := make(chan error, 1)
	go func() { done <- f.engine.Submit(context.Background()) }()
	<-started

	err := f.engine.Reset()
	assert.ErrorIs(t, err, workflow.ErrBusy)
	assert.True(t, f.engine.Snapshot().IsAnalyzing)
	assert.ErrorIs(t, f.engine.Submit(testContext(t)), workflow.ErrBusy)

	close(release)
	require.NoError(t, <-done)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageAnalyzed, view.Stage)
	assert.NotNil(t, view.AuditResult)
	assert.Equal(t, 1, f.backend.count("/audit-only"))

	require.NoError(t, f.engine.Reset())
	assert.Equal(t, workflow.StageIdle, f.engine.Snapshot().Stage)
	assert.Nil(t, f.stored(t, models.FieldResults))
}

func TestEngine_DeclinePrompts(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.DeclineDeployment())

	view := f.engine.Snapshot()
	assert.False(t, view.DeploymentAvailable)
	assert.False(t, view.ShowDeploymentPrompt)
	assert.Equal(t, "false", *f.stored(t, models.FieldDeploymentAvailable))

	// Declining only hides the prompt.
	require.NoError(t, f.engine.RequestDeploy(ctx))
	require.NoError(t, f.engine.DeclineMinting())

	view = f.engine.Snapshot()
	assert.Equal(t, workflow.StageDeployed, view.Stage)
	assert.False(t, view.ShowMintingPrompt)
}

func TestEngine_SelectFileReplacesPastedCode(t *testing.T) {
	f := newFixture(t, walletConnected())

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NotNil(t, f.stored(t, models.FieldPastedCode))

	require.NoError(t, f.engine.SelectFile("Vault.sol", pastedContract))
	view := f.engine.Snapshot()
	assert.Equal(t, models.SourceKindFile, view.Source.Kind)
	assert.Equal(t, "Vault.sol", view.Source.UploadName())
	assert.Nil(t, f.stored(t, models.FieldPastedCode))

	require.NoError(t, f.engine.Submit(testContext(t)))
	assert.Equal(t, workflow.StageAnalyzed, f.engine.Snapshot().Stage)
}

func TestEngine_ReloadDerivesStage(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))
	require.NoError(t, f.engine.RequestDeploy(ctx))
	before := f.engine.Snapshot()
	f.engine.Close()

	// A fresh store instance over the same database, as after a restart.
	reloaded := f.newEngine(t, services.NewSessionStore(f.db.GetDB(), nil, nil))
	view := reloaded.Snapshot()
	assert.Equal(t, before.SessionID, view.SessionID)
	assert.Equal(t, workflow.StageDeployed, view.Stage)
	assert.Equal(t, pastedContract, view.Source.Code)
	assert.Equal(t, before.DeploymentResult, view.DeploymentResult)
	assert.True(t, view.MintingAvailable)
	assert.True(t, view.ShowMintingPrompt)
}

func TestEngine_MirrorsOtherInstances(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	other := f.newEngine(t, services.NewSessionStore(f.db.GetDB(), f.broadcaster, nil))
	require.Equal(t, f.engine.SessionID(), other.SessionID())

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))

	assert.Eventually(t, func() bool {
		view := other.Snapshot()
		return view.Stage == workflow.StageAnalyzed && view.AuditResult != nil && view.Source.Code == pastedContract
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, f.engine.Reset())
	assert.Eventually(t, func() bool {
		view := other.Snapshot()
		return view.Stage == workflow.StageIdle && view.AuditResult == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEngine_DropsMalformedRemoteChange(t *testing.T) {
	f := newFixture(t, walletConnected())
	ctx := testContext(t)

	require.NoError(t, f.engine.SetPastedCode(pastedContract))
	require.NoError(t, f.engine.Submit(ctx))

	garbage := "{not json"
	f.broadcaster.Publish(services.FieldChange{
		SessionID: f.engine.SessionID(),
		Field:     models.FieldResults,
		Value:     &garbage,
		Origin:    "another-tab",
	})

	// Delivery is asynchronous; a valid change published afterwards marks
	// the point where the malformed one has been handled.
	marker := "true"
	f.broadcaster.Publish(services.FieldChange{
		SessionID: f.engine.SessionID(),
		Field:     models.FieldMintingAvailable,
		Value:     &marker,
		Origin:    "another-tab",
	})
	assert.Eventually(t, func() bool {
		return f.engine.Snapshot().MintingAvailable
	}, 5*time.Second, 10*time.Millisecond)

	view := f.engine.Snapshot()
	assert.Equal(t, workflow.StageAnalyzed, view.Stage)
	require.NotNil(t, view.AuditResult)
	assert.Equal(t, fixedContract, view.AuditResult.FixedCode)
}

func TestEngine_NoWalletProvider(t *testing.T) {
	f := newFixture(t)
	engine, err := workflow.New(context.Background(), workflow.Config{
		Store:    services.NewSessionStore(f.db.GetDB(), nil, nil),
		AuditAPI: f.client,
		Compiler: f.client,
		Wallet:   wallet.NewAdapter(nil),
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	ctx := testContext(t)

	assert.False(t, engine.Snapshot().WalletAvailable)
	require.NoError(t, engine.SetPastedCode(pastedContract))
	require.NoError(t, engine.Submit(ctx))
	require.NoError(t, engine.RequestDeploy(ctx))
	assert.Equal(t, workflow.StageAwaitingWalletConnect, engine.Snapshot().Stage)

	_, err = engine.ConnectWallet(ctx)
	assert.True(t, errors.Is(err, wallet.ErrNoProviderFound))
	assert.Equal(t, workflow.StageAnalyzed, engine.Snapshot().Stage)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := workflow.New(context.Background(), workflow.Config{})
	assert.Error(t, err)
}
