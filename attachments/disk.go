package attachments

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"market-chat/domain"
	"market-chat/errors"

	"github.com/google/uuid"
)

// DiskStore is a local stand-in for the hosted object storage. It
// writes files under root/{owner}/{conversation}/ and returns a
// file:// URL. Production deployments swap in the real collaborator
// behind contract.Uploader.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (d *DiskStore) Upload(_ context.Context, ownerID, conversationID string, file domain.Attachment) (string, error) {
	dir := filepath.Join(d.root, ownerID, conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUpload, err)
	}
	name := uuid.New().String() + filepath.Ext(file.Name)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUpload, err)
	}
	return "file://" + path, nil
}
