package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"gorm.io/gorm"
)

// ChangeChannel is the postgres notification channel that wakes change feeds.
const ChangeChannel = "auditsmart_session_changes"

const (
	DefaultFeedInterval  = 500 * time.Millisecond
	DefaultFeedRetention = 10 * time.Minute

	feedBatchSize    = 500
	feedGapTimeout   = 2 * time.Second
	feedPruneEvery   = time.Minute
	listenRetryDelay = 5 * time.Second
)

// ChangeFeed reads the session change journal and republishes writes made by
// other processes on the local broadcaster, so every store subscribed there
// sees them like in-process writes.
type ChangeFeed struct {
	db          *gorm.DB
	broadcaster *Broadcaster
	logger      *slog.Logger
	interval    time.Duration
	retention   time.Duration
	listenDSN   string

	wake      chan struct{}
	cursor    uint
	delivered map[uint]struct{}
	gapSince  time.Time
	lastPrune time.Time

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type ChangeFeedOption func(*ChangeFeed)

func WithFeedInterval(interval time.Duration) ChangeFeedOption {
	return func(f *ChangeFeed) {
		if interval > 0 {
			f.interval = interval
		}
	}
}

// WithFeedRetention sets how long journal rows are kept.
func WithFeedRetention(retention time.Duration) ChangeFeedOption {
	return func(f *ChangeFeed) {
		if retention > 0 {
			f.retention = retention
		}
	}
}

func WithFeedLogger(logger *slog.Logger) ChangeFeedOption {
	return func(f *ChangeFeed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithListenDSN listens for postgres notifications on ChangeChannel so new
// changes are read without waiting for the next poll.
func WithListenDSN(dsn string) ChangeFeedOption {
	return func(f *ChangeFeed) {
		f.listenDSN = dsn
	}
}

func NewChangeFeed(db *gorm.DB, broadcaster *Broadcaster, opts ...ChangeFeedOption) *ChangeFeed {
	f := &ChangeFeed{
		db:          db,
		broadcaster: broadcaster,
		logger:      slog.Default(),
		interval:    DefaultFeedInterval,
		retention:   DefaultFeedRetention,
		wake:        make(chan struct{}, 1),
		delivered:   map[uint]struct{}{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start skips the changes already journaled and begins delivering new ones.
// Later calls do nothing.
func (f *ChangeFeed) Start(ctx context.Context) error {
	var err error
	f.startOnce.Do(func() {
		err = f.start(ctx)
	})
	return err
}

func (f *ChangeFeed) start(ctx context.Context) error {
	var latest uint
	err := f.db.WithContext(ctx).Model(&models.SessionChange{}).Select("COALESCE(MAX(id), 0)").Scan(&latest).Error
	if err != nil {
		return fmt.Errorf("failed to read session change journal: %w", err)
	}
	f.cursor = latest

	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go f.run(ctx)
	if f.listenDSN != "" {
		f.wg.Add(1)
		go f.listen(ctx)
	}
	return nil
}

// Close stops the feed and waits for its goroutines.
func (f *ChangeFeed) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

func (f *ChangeFeed) nudge() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *ChangeFeed) run(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-f.wake:
		}

		if err := f.poll(ctx); err != nil && ctx.Err() == nil {
			f.logger.Warn("failed to read session changes", "error", err)
		}
		if time.Since(f.lastPrune) >= feedPruneEvery {
			f.lastPrune = time.Now()
			if err := f.prune(ctx); err != nil && ctx.Err() == nil {
				f.logger.Warn("failed to prune session changes", "error", err)
			}
		}
	}
}

// poll delivers every journaled change past the cursor that was written on
// another node.
func (f *ChangeFeed) poll(ctx context.Context) error {
	var changes []models.SessionChange
	err := f.db.WithContext(ctx).
		Where("id > ?", f.cursor).
		Order("id").
		Limit(feedBatchSize).
		Find(&changes).Error
	if err != nil {
		return err
	}

	for _, change := range changes {
		if _, seen := f.delivered[change.ID]; !seen {
			f.delivered[change.ID] = struct{}{}
			if change.Node != f.broadcaster.Node() {
				f.broadcaster.Publish(FieldChange{
					SessionID: change.SessionID,
					Field:     change.Field,
					Value:     change.Value,
					Origin:    change.Origin,
				})
			}
		}
		f.advance(change.ID)
	}

	for id := range f.delivered {
		if id <= f.cursor {
			delete(f.delivered, id)
		}
	}
	return nil
}

// advance moves the cursor to id when no earlier id is missing. A gap left by
// a transaction that has not committed yet holds the cursor for
// feedGapTimeout, after which the missing ids are taken as rolled back.
func (f *ChangeFeed) advance(id uint) {
	if id == f.cursor+1 {
		f.cursor = id
		f.gapSince = time.Time{}
		return
	}
	if f.gapSince.IsZero() {
		f.gapSince = time.Now()
		return
	}
	if time.Since(f.gapSince) >= feedGapTimeout {
		f.cursor = id
		f.gapSince = time.Time{}
	}
}

func (f *ChangeFeed) prune(ctx context.Context) error {
	cutoff := time.Now().Add(-f.retention)
	return f.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SessionChange{}).Error
}

func (f *ChangeFeed) listen(ctx context.Context) {
	defer f.wg.Done()
	for {
		err := f.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("session change listener stopped, retrying", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (f *ChangeFeed) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, f.listenDSN)
	if err != nil {
		return fmt.Errorf("failed to connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if notification.Payload == f.broadcaster.Node() {
			continue
		}
		f.nudge()
	}
}
