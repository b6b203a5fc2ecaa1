// Package attachments validates raw files before they reach the
// object storage collaborator. Only images pass, and the store
// re-validates server side; this check exists to fail fast without a
// network round trip.
package attachments

import (
	"fmt"

	"market-chat/domain"
	"market-chat/errors"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the upload ceiling: 10 MiB.
const MaxSize = 10 << 20

var allowed = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
}

// Validate sniffs the content type from the raw bytes and enforces the
// image whitelist and size ceiling. The declared filename is ignored;
// only the bytes decide.
func Validate(file domain.Attachment) error {
	if len(file.Data) == 0 {
		return fmt.Errorf("%w: empty file %q", errors.ErrValidation, file.Name)
	}
	if len(file.Data) > MaxSize {
		return fmt.Errorf("%w: %q exceeds %d bytes", errors.ErrValidation, file.Name, MaxSize)
	}
	detected := mimetype.Detect(file.Data)
	if _, ok := allowed[detected.String()]; !ok {
		return fmt.Errorf("%w: %q has unsupported type %s", errors.ErrValidation, file.Name, detected)
	}
	return nil
}
