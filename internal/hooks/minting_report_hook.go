package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rxtech-lab/auditsmart/internal/auditapi"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
)

// MintingReporter sends the bookkeeping record of a mint.
type MintingReporter interface {
	ReportMinting(ctx context.Context, report auditapi.MintingReport) (*auditapi.ReportResult, error)
}

// MintingReportHook reports every confirmed mint to the audit service. A
// record the service already holds is not an error.
type MintingReportHook struct {
	reporter MintingReporter
	logger   *slog.Logger
}

// CanHandle implements Hook.
func (h *MintingReportHook) CanHandle(txType models.TransactionType) bool {
	return txType == models.TransactionTypeNFTMint
}

// OnTransactionConfirmed implements Hook.
func (h *MintingReportHook) OnTransactionConfirmed(ctx context.Context, tx models.ConfirmedTransaction) error {
	if tx.Minting == nil {
		return fmt.Errorf("mint %s has no minting result", tx.TransactionHash)
	}

	result, err := h.reporter.ReportMinting(ctx, auditapi.NewMintingReport(*tx.Minting))
	if err != nil {
		return fmt.Errorf("failed to send minting report: %w", err)
	}
	if result.IsDuplicate {
		h.logger.Info("minting record already exists", "transaction_hash", tx.TransactionHash, "token_id", tx.Minting.TokenID)
		return nil
	}
	h.logger.Info("minting report sent", "transaction_hash", tx.TransactionHash, "report_id", result.ID)
	return nil
}

func NewMintingReportHook(reporter MintingReporter, logger *slog.Logger) services.Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &MintingReportHook{
		reporter: reporter,
		logger:   logger,
	}
}
