package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
	"gorm.io/gorm"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	defaultBatchSize    = 100
)

// Publisher -> hub yang menerima event dari outbox
type Publisher interface {
	Publish(p protocol.Payload) error
}

// ChangeMonitor membaca outbox db_changes dan mengirim setiap baris ke hub sesuai urutan ID.
type ChangeMonitor struct {
	DB        *gorm.DB
	Interval  time.Duration
	BatchSize int
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics

	publisher Publisher
	stopChan  chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	now       func() time.Time
}

func NewChangeMonitor(db *gorm.DB, publisher Publisher) *ChangeMonitor {
	return &ChangeMonitor{
		DB:        db,
		Interval:  DefaultPollInterval,
		BatchSize: defaultBatchSize,
		Log:       utils.Log().WithField("component", "change_monitor"),
		publisher: publisher,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

func (cm *ChangeMonitor) Start() {
	cm.startOnce.Do(func() {
		go func() {
			defer close(cm.done)
			ticker := time.NewTicker(cm.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if _, err := cm.ProcessPending(); err != nil {
						cm.Log.WithError(err).Warn("Processing changes failed, retrying next tick")
					}
				case <-cm.stopChan:
					return
				}
			}
		}()
	})
}

// Stop menghentikan polling dan menunggu batch yang sedang berjalan selesai.
// Monitor yang sudah di-Stop tidak bisa di-Start lagi.
func (cm *ChangeMonitor) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
	})
	cm.startOnce.Do(func() { close(cm.done) })
	<-cm.done
}

// ProcessPending -> kirim satu batch perubahan yang belum diproses; mengembalikan jumlah yang terkirim.
// Bila publish gagal, batch berhenti di baris itu supaya urutan tetap terjaga.
func (cm *ChangeMonitor) ProcessPending() (int, error) {
	var changes []models.DBChange
	if err := cm.DB.Where("processed = ?", false).
		Order("id ASC").
		Limit(cm.BatchSize).
		Find(&changes).Error; err != nil {
		return 0, fmt.Errorf("fetch changes: %w", err)
	}

	published := 0
	for _, change := range changes {
		msg, err := change.Message()
		switch {
		case errors.Is(err, protocol.ErrUnknownKind), errors.Is(err, protocol.ErrMalformed):
			// baris rusak tidak akan pernah bisa dikirim, tandai saja
			cm.Log.WithError(err).WithField("change_id", change.ID).Error("Dropping unreadable change")
			cm.countError()
		case err != nil:
			return published, err
		default:
			if err := cm.publisher.Publish(msg.Payload); err != nil {
				cm.countError()
				return published, fmt.Errorf("publish change %d: %w", change.ID, err)
			}
			published++
			if cm.Metrics != nil {
				cm.Metrics.ChangesProcessed.Inc()
			}
		}

		if err := cm.markProcessed(change.ID); err != nil {
			return published, fmt.Errorf("mark change %d processed: %w", change.ID, err)
		}
	}

	if len(changes) > 0 {
		cm.Log.WithField("count", published).Debug("Processed changes")
	}
	return published, nil
}

func (cm *ChangeMonitor) markProcessed(id uint) error {
	at := cm.now().UTC()
	return cm.DB.Model(&models.DBChange{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": at}).Error
}

func (cm *ChangeMonitor) countError() {
	if cm.Metrics != nil {
		cm.Metrics.ChangeErrors.Inc()
	}
}
