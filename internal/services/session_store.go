package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionStore persists audit session fields and keeps every open instance
// in sync with writes made by the others.
type SessionStore interface {
	// CurrentSessionID returns the persisted active session id, creating one
	// on first use.
	CurrentSessionID() (string, error)
	Get(sessionID string, field models.SessionField) (*string, error)
	// Set writes value through to storage. A nil value removes the field.
	Set(sessionID string, field models.SessionField, value *string) error
	// SetMany applies all writes in one transaction.
	SetMany(sessionID string, values map[models.SessionField]*string) error
	Load(sessionID string) (map[models.SessionField]string, error)
	// Clear removes every field of the session at once.
	Clear(sessionID string) error
	ListSessions() ([]string, error)
	// Subscribe delivers changes to sessionID made by other store instances.
	Subscribe(sessionID string, fn func(FieldChange)) (unsubscribe func())
	Origin() string
}

type sessionStore struct {
	db          *gorm.DB
	broadcaster *Broadcaster
	logger      *slog.Logger
	origin      string
}

func NewSessionStore(db *gorm.DB, broadcaster *Broadcaster, logger *slog.Logger) SessionStore {
	if broadcaster == nil {
		broadcaster = NewBroadcaster()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionStore{
		db:          db,
		broadcaster: broadcaster,
		logger:      logger,
		origin:      uuid.New().String(),
	}
}

func (s *sessionStore) Origin() string {
	return s.origin
}

func (s *sessionStore) CurrentSessionID() (string, error) {
	var pref models.Preference
	err := s.db.Where(&models.Preference{Key: models.CurrentSessionKey}).First(&pref).Error
	if err == nil && pref.Value != "" {
		return pref.Value, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to read current session id: %w", err)
	}

	pref = models.Preference{Key: models.CurrentSessionKey, Value: uuid.New().String()}
	// A concurrent instance may have created it first; keep theirs
	err = s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pref).Error
	if err != nil {
		return "", fmt.Errorf("failed to store current session id: %w", err)
	}

	var stored models.Preference
	if err := s.db.Where(&models.Preference{Key: models.CurrentSessionKey}).First(&stored).Error; err != nil {
		return "", fmt.Errorf("failed to read current session id: %w", err)
	}
	return stored.Value, nil
}

func (s *sessionStore) Get(sessionID string, field models.SessionField) (*string, error) {
	var entry models.SessionEntry
	err := s.db.Where("session_id = ? AND field = ?", sessionID, field).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", models.StorageKey(sessionID, field), err)
	}
	return &entry.Value, nil
}

func (s *sessionStore) Set(sessionID string, field models.SessionField, value *string) error {
	return s.SetMany(sessionID, map[models.SessionField]*string{field: value})
}

func (s *sessionStore) SetMany(sessionID string, values map[models.SessionField]*string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	for field := range values {
		if !field.Valid() {
			return fmt.Errorf("unknown session field: %s", field)
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var changes []models.SessionChange
		for _, field := range models.SessionFields {
			value, ok := values[field]
			if !ok {
				continue
			}
			if err := writeEntry(tx, sessionID, field, value); err != nil {
				return err
			}
			changes = append(changes, s.change(sessionID, field, value))
		}
		return journal(tx, changes)
	})
	if err != nil {
		return err
	}

	for _, field := range models.SessionFields {
		if value, ok := values[field]; ok {
			s.publish(sessionID, field, value)
		}
	}
	s.notify()
	return nil
}

// change builds the journal row of one write.
func (s *sessionStore) change(sessionID string, field models.SessionField, value *string) models.SessionChange {
	change := models.SessionChange{
		SessionID: sessionID,
		Field:     field,
		Node:      s.broadcaster.Node(),
		Origin:    s.origin,
	}
	if value != nil {
		v := *value
		change.Value = &v
	}
	return change
}

func journal(tx *gorm.DB, changes []models.SessionChange) error {
	if len(changes) == 0 {
		return nil
	}
	if err := tx.Create(&changes).Error; err != nil {
		return fmt.Errorf("failed to journal session changes: %w", err)
	}
	return nil
}

// notify wakes the change feeds of other processes on postgres. Feeds poll
// the journal anyway, so a failed notification only delays delivery.
func (s *sessionStore) notify() {
	if s.db.Dialector.Name() != "postgres" {
		return
	}
	if err := s.db.Exec("SELECT pg_notify(?, ?)", ChangeChannel, s.broadcaster.Node()).Error; err != nil {
		s.logger.Warn("failed to notify session change", "error", err)
	}
}

func writeEntry(tx *gorm.DB, sessionID string, field models.SessionField, value *string) error {
	if value == nil {
		err := tx.Where("session_id = ? AND field = ?", sessionID, field).Delete(&models.SessionEntry{}).Error
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", models.StorageKey(sessionID, field), err)
		}
		return nil
	}

	entry := models.SessionEntry{
		SessionID: sessionID,
		Field:     field,
		Value:     *value,
		UpdatedAt: time.Now(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "field"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", models.StorageKey(sessionID, field), err)
	}
	return nil
}

func (s *sessionStore) Load(sessionID string) (map[models.SessionField]string, error) {
	var entries []models.SessionEntry
	if err := s.db.Where("session_id = ?", sessionID).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	result := make(map[models.SessionField]string, len(entries))
	for _, entry := range entries {
		result[entry.Field] = entry.Value
	}
	return result, nil
}

func (s *sessionStore) Clear(sessionID string) error {
	var removed []models.SessionField
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var fields []models.SessionField
		if err := tx.Model(&models.SessionEntry{}).Where("session_id = ?", sessionID).Pluck("field", &fields).Error; err != nil {
			return fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.SessionEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
		}

		present := make(map[models.SessionField]bool, len(fields))
		for _, field := range fields {
			present[field] = true
		}
		var changes []models.SessionChange
		for _, field := range models.SessionFields {
			if present[field] {
				removed = append(removed, field)
				changes = append(changes, s.change(sessionID, field, nil))
			}
		}
		return journal(tx, changes)
	})
	if err != nil {
		return err
	}

	for _, field := range removed {
		s.publish(sessionID, field, nil)
	}
	if len(removed) > 0 {
		s.notify()
	}
	return nil
}

func (s *sessionStore) ListSessions() ([]string, error) {
	var ids []string
	err := s.db.Model(&models.SessionEntry{}).Distinct("session_id").Order("session_id").Pluck("session_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

func (s *sessionStore) Subscribe(sessionID string, fn func(FieldChange)) func() {
	return s.broadcaster.Subscribe(s.origin, func(change FieldChange) {
		if change.SessionID != sessionID {
			return
		}
		if !change.Field.Valid() {
			s.logger.Warn("ignoring malformed session change",
				"key", models.StorageKey(change.SessionID, change.Field))
			return
		}
		fn(change)
	})
}

func (s *sessionStore) publish(sessionID string, field models.SessionField, value *string) {
	var copied *string
	if value != nil {
		v := *value
		copied = &v
	}
	s.broadcaster.Publish(FieldChange{
		SessionID: sessionID,
		Field:     field,
		Value:     copied,
		Origin:    s.origin,
	})
}
