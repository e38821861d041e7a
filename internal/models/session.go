package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionField names one persisted attribute of an audit session.
type SessionField string

const (
	FieldPastedCode          SessionField = "pastedCode"
	FieldResults             SessionField = "results"
	FieldCompilationResults  SessionField = "compilationResults"
	FieldDeploymentResults   SessionField = "deploymentResults"
	FieldMintingResults      SessionField = "mintingResults"
	FieldDeploymentAvailable SessionField = "deploymentAvailable"
	FieldMintingAvailable    SessionField = "mintingAvailable"
)

// SessionFields lists every persisted field in write order.
var SessionFields = []SessionField{
	FieldPastedCode,
	FieldResults,
	FieldCompilationResults,
	FieldDeploymentResults,
	FieldMintingResults,
	FieldDeploymentAvailable,
	FieldMintingAvailable,
}

// CurrentSessionKey is the preference key holding the active session id.
const CurrentSessionKey = "currentAuditSessionId"

func (f SessionField) Valid() bool {
	for _, field := range SessionFields {
		if field == f {
			return true
		}
	}
	return false
}

// StorageKey returns the namespaced key of a session field,
// e.g. auditSession_<id>_results.
func StorageKey(sessionID string, field SessionField) string {
	return fmt.Sprintf("auditSession_%s_%s", sessionID, field)
}

// SessionEntry is one persisted session field.
type SessionEntry struct {
	SessionID string       `gorm:"primaryKey;type:varchar(64)" json:"session_id"`
	Field     SessionField `gorm:"primaryKey;type:varchar(64)" json:"field"`
	Value     string       `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SessionChange journals one write to a session field so instances in other
// processes can mirror it. A nil Value records a removal.
type SessionChange struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	SessionID string       `gorm:"type:varchar(64);not null" json:"session_id"`
	Field     SessionField `gorm:"type:varchar(64);not null" json:"field"`
	Value     *string      `gorm:"type:text" json:"value,omitempty"`
	// Node identifies the process-local broadcaster of the writing store.
	Node      string    `gorm:"type:varchar(64);not null" json:"node"`
	Origin    string    `gorm:"type:varchar(64);not null" json:"origin"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Preference is a global key/value setting.
type Preference struct {
	Key       string    `gorm:"primaryKey;type:varchar(128)" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SourceKind string

const (
	SourceKindFile   SourceKind = "file"
	SourceKindPasted SourceKind = "pasted"
)

// PastedFileName is the upload name used for pasted sources.
const PastedFileName = "pasted_contract.sol"

// SourceInput is the contract source the user wants audited.
type SourceInput struct {
	Kind     SourceKind `json:"kind"`
	FileName string     `json:"file_name,omitempty"`
	Code     string     `json:"code"`
}

func (s SourceInput) IsEmpty() bool {
	return strings.TrimSpace(s.Code) == ""
}

// UploadName is the multipart file name sent to the audit service.
func (s SourceInput) UploadName() string {
	if s.Kind == SourceKindFile && s.FileName != "" {
		return s.FileName
	}
	return PastedFileName
}

// AuditSession is the in-memory mirror of one persisted session.
type AuditSession struct {
	SessionID           string             `json:"session_id"`
	Source              SourceInput        `json:"source"`
	AuditResult         *AuditResult       `json:"audit_result,omitempty"`
	CompilationResult   *CompilationResult `json:"compilation_result,omitempty"`
	DeploymentResult    *DeploymentResult  `json:"deployment_result,omitempty"`
	MintingResult       *MintingResult     `json:"minting_result,omitempty"`
	DeploymentAvailable bool               `json:"deployment_available"`
	MintingAvailable    bool               `json:"minting_available"`
}

// ClearResults drops the whole result chain and both availability flags.
func (s *AuditSession) ClearResults() {
	s.AuditResult = nil
	s.CompilationResult = nil
	s.DeploymentResult = nil
	s.MintingResult = nil
	s.DeploymentAvailable = false
	s.MintingAvailable = false
}

// HasResults reports whether any stage result exists.
func (s *AuditSession) HasResults() bool {
	return s.AuditResult != nil || s.CompilationResult != nil ||
		s.DeploymentResult != nil || s.MintingResult != nil
}

// Apply decodes a persisted value into the session. A nil value clears the field.
func (s *AuditSession) Apply(field SessionField, value *string) error {
	switch field {
	case FieldPastedCode:
		if value == nil {
			if s.Source.Kind == SourceKindPasted {
				s.Source = SourceInput{}
			}
			return nil
		}
		var code string
		if err := json.Unmarshal([]byte(*value), &code); err != nil {
			return fmt.Errorf("failed to decode %s: %w", field, err)
		}
		s.Source = SourceInput{Kind: SourceKindPasted, Code: code}
		return nil
	case FieldResults:
		return decodeInto(field, value, &s.AuditResult)
	case FieldCompilationResults:
		return decodeInto(field, value, &s.CompilationResult)
	case FieldDeploymentResults:
		return decodeInto(field, value, &s.DeploymentResult)
	case FieldMintingResults:
		return decodeInto(field, value, &s.MintingResult)
	case FieldDeploymentAvailable:
		return decodeFlag(field, value, &s.DeploymentAvailable)
	case FieldMintingAvailable:
		return decodeFlag(field, value, &s.MintingAvailable)
	default:
		return fmt.Errorf("unknown session field: %s", field)
	}
}

// Encode returns the persisted representation of a field, or nil when the
// field is absent and its key should be removed.
func (s *AuditSession) Encode(field SessionField) (*string, error) {
	switch field {
	case FieldPastedCode:
		if s.Source.Kind != SourceKindPasted || s.Source.Code == "" {
			return nil, nil
		}
		return encode(s.Source.Code)
	case FieldResults:
		return encodePtr(s.AuditResult)
	case FieldCompilationResults:
		return encodePtr(s.CompilationResult)
	case FieldDeploymentResults:
		return encodePtr(s.DeploymentResult)
	case FieldMintingResults:
		return encodePtr(s.MintingResult)
	case FieldDeploymentAvailable:
		return encode(s.DeploymentAvailable)
	case FieldMintingAvailable:
		return encode(s.MintingAvailable)
	default:
		return nil, fmt.Errorf("unknown session field: %s", field)
	}
}

func decodeInto[T any](field SessionField, value *string, dst **T) error {
	if value == nil {
		*dst = nil
		return nil
	}
	var decoded T
	if err := json.Unmarshal([]byte(*value), &decoded); err != nil {
		return fmt.Errorf("failed to decode %s: %w", field, err)
	}
	*dst = &decoded
	return nil
}

func decodeFlag(field SessionField, value *string, dst *bool) error {
	if value == nil {
		*dst = false
		return nil
	}
	if err := json.Unmarshal([]byte(*value), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", field, err)
	}
	return nil
}

func encodePtr[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	return encode(v)
}

func encode(v any) (*string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
