// Package reliability provides state backups and database maintenance.
package reliability

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	backupPrefix      = "zakat-state-"
	backupSuffix      = ".msgpack"
	backupTimeLayout  = "2006-01-02-150405"
	backupFormat      = "1"
	minBackupsToKeep  = 3
	backupContentType = "application/x-msgpack"
)

// Snapshotter returns the current aggregate.
type Snapshotter interface {
	Snapshot() domain.State
}

// BackupPayload is the encoded content of one backup object.
type BackupPayload struct {
	CreatedAt time.Time    `json:"created_at"`
	Format    string       `json:"format"`
	State     domain.State `json:"state"`
}

// BackupInfo describes a backup stored in the bucket.
type BackupInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService uploads msgpack-encoded state snapshots to object storage.
type BackupService struct {
	state   Snapshotter
	storage ObjectStorage
	events  *events.Manager
	now     func() time.Time
	log     zerolog.Logger
}

// NewBackupService creates a backup service.
func NewBackupService(st Snapshotter, storage ObjectStorage, em *events.Manager, log zerolog.Logger) *BackupService {
	return &BackupService{
		state:   st,
		storage: storage,
		events:  em,
		now:     time.Now,
		log:     log.With().Str("service", "backup").Logger(),
	}
}

// EncodeBackup encodes a payload with the same field names as the JSON wire format.
func EncodeBackup(p BackupPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBackup is the inverse of EncodeBackup.
func DecodeBackup(data []byte) (BackupPayload, error) {
	var p BackupPayload
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&p); err != nil {
		return BackupPayload{}, fmt.Errorf("failed to decode backup: %w", err)
	}
	return p, nil
}

// CreateAndUpload snapshots the state and uploads it. It returns the object key.
func (s *BackupService) CreateAndUpload(ctx context.Context) (string, error) {
	started := s.now().UTC()
	data, err := EncodeBackup(BackupPayload{
		CreatedAt: started,
		Format:    backupFormat,
		State:     s.state.Snapshot(),
	})
	if err != nil {
		return "", err
	}

	key := backupPrefix + started.Format(backupTimeLayout) + backupSuffix
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), backupContentType); err != nil {
		s.events.EmitError("backup", err, map[string]interface{}{"key": key})
		return "", err
	}

	s.log.Info().
		Str("key", key).
		Int("size_bytes", len(data)).
		Msg("State backup uploaded")
	s.events.Emit("backup", &events.BackupCompletedData{Key: key, SizeBytes: len(data)})
	return key, nil
}

// ListBackups returns stored backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.storage.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		key := *obj.Key
		if !strings.HasPrefix(key, backupPrefix) || !strings.HasSuffix(key, backupSuffix) {
			continue
		}
		ts, err := time.Parse(backupTimeLayout, strings.TrimSuffix(strings.TrimPrefix(key, backupPrefix), backupSuffix))
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Failed to parse timestamp from backup key")
			continue
		}
		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{Key: key, Timestamp: ts, SizeBytes: size})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than retentionDays, always keeping the
// newest three. retentionDays <= 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, b := range backups[minBackupsToKeep:] {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.storage.Delete(ctx, b.Key); err != nil {
			s.log.Warn().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Int("retention_days", retentionDays).Msg("Rotated old backups")
	}
	return deleted, nil
}

// BackupJob uploads a backup and rotates old ones.
type BackupJob struct {
	service       *BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates the state_backup job.
func NewBackupJob(service *BackupService, retentionDays int, timeout time.Duration, log zerolog.Logger) *BackupJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       timeout,
		log:           log.With().Str("job", "state_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "state_backup"
}

// Run executes the backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
