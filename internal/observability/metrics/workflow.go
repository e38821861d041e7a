package metrics

import "time"

// StageTransition records a workflow stage change.
func StageTransition(from, to string) {
	if !enabled {
		return
	}
	stageTransitionTotal.WithLabelValues(from, to).Inc()
}

// StageFailure records a failed analyze, compile, deploy or mint.
func StageFailure(operation string) {
	if !enabled {
		return
	}
	stageFailureTotal.WithLabelValues(operation).Inc()
}

// AuditAPIRequest records one call to the remote audit API.
func AuditAPIRequest(endpoint, status string, duration time.Duration) {
	if !enabled {
		return
	}
	auditAPIRequestTotal.WithLabelValues(endpoint, status).Inc()
	auditAPIDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// WalletTransaction records a signed transaction outcome.
func WalletTransaction(kind, status string) {
	if !enabled {
		return
	}
	walletTransactionTotal.WithLabelValues(kind, status).Inc()
}
