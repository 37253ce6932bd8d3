package verification

import (
	"errors"
	"fmt"
)

// MaxProofSize is the largest proof upload accepted as evidence.
const MaxProofSize = 50 * 1024 * 1024

var allowedProofTypes = map[string]bool{
	"application/octet-stream": true, // replay files
	"application/zip":          true,
	"image/jpeg":               true,
	"image/png":                true,
	"image/gif":                true,
	"video/mp4":                true,
	"video/quicktime":          true,
	"text/plain":               true,
	"application/json":         true,
}

var (
	ErrProofTooLarge       = errors.New("proof file exceeds size limit")
	ErrProofTypeNotAllowed = errors.New("proof content type not allowed")
)

// ValidateProof checks upload metadata against the size and type allow-list.
func ValidateProof(p ProofFile) error {
	if p.Size > MaxProofSize {
		return fmt.Errorf("%s: %w", p.Filename, ErrProofTooLarge)
	}
	if !allowedProofTypes[p.ContentType] {
		return fmt.Errorf("%s (%s): %w", p.Filename, p.ContentType, ErrProofTypeNotAllowed)
	}
	return nil
}

// FilterProofs splits proofs into the ones usable as evidence and the
// rejection reasons for the rest.
func FilterProofs(proofs []ProofFile) ([]ProofFile, []string) {
	accepted := make([]ProofFile, 0, len(proofs))
	var rejected []string
	for _, p := range proofs {
		if err := ValidateProof(p); err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		accepted = append(accepted, p)
	}
	return accepted, rejected
}
