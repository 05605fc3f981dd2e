package service

import (
	"io"

	"github.com/studyhive/studyhive-api/pkg/storage"
)

// FileService resolves signed download tokens to readable files. It backs
// the unauthenticated file endpoint, where the token is the whole grant.
type FileService struct {
	signer *storage.SignedURLSigner
	store  *storage.LocalStorage
}

// NewFileService constructs a FileService.
func NewFileService(signer *storage.SignedURLSigner, store *storage.LocalStorage) *FileService {
	return &FileService{signer: signer, store: store}
}

// ParseDownloadToken validates the token and returns the stored path.
func (s *FileService) ParseDownloadToken(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", err
	}
	return relPath, nil
}

// OpenFile opens the stored file at the given relative path.
func (s *FileService) OpenFile(relPath string) (io.ReadSeekCloser, error) {
	return s.store.Open(relPath)
}
