package upload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Upload tracks one in-flight chunked file upload. Parts land in a
// scratch directory and are stitched together on completion; the
// assembled file is then pushed to object storage by the caller.
type Upload struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	FileName    string        `json:"file_name"`
	TotalSize   int64         `json:"total_size"`
	PartSize    int64         `json:"part_size"`
	TotalParts  int           `json:"total_parts"`
	Parts       map[int]*Part `json:"parts"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	mu          sync.RWMutex
}

// Part is a single uploaded chunk
type Part struct {
	PartNumber int       `json:"part_number"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag"`
	Uploaded   bool      `json:"uploaded"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
}

// Service manages chunked uploads for files too large for a single
// multipart form post.
type Service struct {
	uploads  map[string]*Upload
	mu       sync.RWMutex
	tempDir  string
	partSize int64
}

const (
	DefaultPartSize  = 5 * 1024 * 1024
	UploadExpiration = 24 * time.Hour

	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// NewService creates a chunked-upload service rooted at tempDir
func NewService(tempDir string) *Service {
	return &Service{
		uploads:  make(map[string]*Upload),
		tempDir:  tempDir,
		partSize: DefaultPartSize,
	}
}

// Initiate starts a new chunked upload for the given owner
func (s *Service) Initiate(ownerID, fileName string, totalSize int64) (*Upload, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("invalid total size: %d", totalSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uploadID := uuid.New().String()
	totalParts := int((totalSize + s.partSize - 1) / s.partSize)

	u := &Upload{
		ID:         uploadID,
		OwnerID:    ownerID,
		FileName:   fileName,
		TotalSize:  totalSize,
		PartSize:   s.partSize,
		TotalParts: totalParts,
		Parts:      make(map[int]*Part),
		Status:     StatusActive,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(UploadExpiration),
	}

	uploadDir := filepath.Join(s.tempDir, "uploads", uploadID)
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	s.uploads[uploadID] = u

	log.Info().
		Str("upload_id", uploadID).
		Str("file_name", fileName).
		Int64("total_size", totalSize).
		Int("total_parts", totalParts).
		Msg("Initiated chunked upload")

	return u, nil
}

// UploadPart stores one chunk of an active upload
func (s *Service) UploadPart(ownerID, uploadID string, partNumber int, data io.Reader) (*Part, error) {
	u, err := s.get(ownerID, uploadID)
	if err != nil {
		return nil, err
	}

	if u.Status != StatusActive {
		return nil, fmt.Errorf("upload is not active")
	}
	if time.Now().After(u.ExpiresAt) {
		return nil, fmt.Errorf("upload has expired")
	}
	if partNumber < 1 || partNumber > u.TotalParts {
		return nil, fmt.Errorf("invalid part number: %d", partNumber)
	}

	partPath := filepath.Join(s.tempDir, "uploads", uploadID, fmt.Sprintf("part_%d", partNumber))

	file, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create part file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	size, err := io.Copy(io.MultiWriter(file, hash), data)
	if err != nil {
		return nil, fmt.Errorf("failed to write part: %w", err)
	}

	part := &Part{
		PartNumber: partNumber,
		Size:       size,
		ETag:       hex.EncodeToString(hash.Sum(nil)),
		Uploaded:   true,
		UploadedAt: time.Now(),
	}

	u.mu.Lock()
	u.Parts[partNumber] = part
	u.mu.Unlock()

	return part, nil
}

// Complete stitches the parts into one file and returns its path. The
// caller owns moving the file into object storage and removing it.
func (s *Service) Complete(ownerID, uploadID string) (string, error) {
	u, err := s.get(ownerID, uploadID)
	if err != nil {
		return "", err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.Status != StatusActive {
		return "", fmt.Errorf("upload is not active")
	}

	for i := 1; i <= u.TotalParts; i++ {
		if part, ok := u.Parts[i]; !ok || !part.Uploaded {
			return "", fmt.Errorf("missing part %d", i)
		}
	}

	uploadDir := filepath.Join(s.tempDir, "uploads", uploadID)
	finalPath := filepath.Join(uploadDir, u.FileName)

	finalFile, err := os.Create(finalPath)
	if err != nil {
		return "", fmt.Errorf("failed to create final file: %w", err)
	}
	defer finalFile.Close()

	for i := 1; i <= u.TotalParts; i++ {
		partPath := filepath.Join(uploadDir, fmt.Sprintf("part_%d", i))
		partFile, err := os.Open(partPath)
		if err != nil {
			return "", fmt.Errorf("failed to open part %d: %w", i, err)
		}

		if _, err := io.Copy(finalFile, partFile); err != nil {
			partFile.Close()
			return "", fmt.Errorf("failed to copy part %d: %w", i, err)
		}
		partFile.Close()
		os.Remove(partPath)
	}

	u.Status = StatusCompleted
	now := time.Now()
	u.CompletedAt = &now

	log.Info().Str("upload_id", uploadID).Str("path", finalPath).Msg("Completed chunked upload")
	return finalPath, nil
}

// Abort cancels an upload and removes its scratch files
func (s *Service) Abort(ownerID, uploadID string) error {
	u, err := s.get(ownerID, uploadID)
	if err != nil {
		return err
	}

	u.mu.Lock()
	u.Status = StatusAborted
	u.mu.Unlock()

	s.remove(uploadID)
	log.Info().Str("upload_id", uploadID).Msg("Aborted chunked upload")
	return nil
}

// Get returns an upload's status for its owner
func (s *Service) Get(ownerID, uploadID string) (*Upload, error) {
	return s.get(ownerID, uploadID)
}

func (s *Service) get(ownerID, uploadID string) (*Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.uploads[uploadID]
	if !exists || u.OwnerID != ownerID {
		return nil, fmt.Errorf("upload not found: %s", uploadID)
	}
	return u, nil
}

func (s *Service) remove(uploadID string) {
	uploadDir := filepath.Join(s.tempDir, "uploads", uploadID)
	if err := os.RemoveAll(uploadDir); err != nil {
		log.Warn().Err(err).Str("upload_id", uploadID).Msg("Failed to remove upload directory")
	}

	s.mu.Lock()
	delete(s.uploads, uploadID)
	s.mu.Unlock()
}

// CleanupExpired drops abandoned uploads once an hour until the context
// is cancelled.
func (s *Service) CleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func (s *Service) cleanupExpired() {
	s.mu.RLock()
	var expired []string
	now := time.Now()
	for uploadID, u := range s.uploads {
		if now.After(u.ExpiresAt) && u.Status == StatusActive {
			expired = append(expired, uploadID)
		}
	}
	s.mu.RUnlock()

	for _, uploadID := range expired {
		s.remove(uploadID)
		log.Info().Str("upload_id", uploadID).Msg("Cleaned up expired upload")
	}
}
