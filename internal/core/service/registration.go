package service

import (
	"context"
	"fmt"
	"log"
	"strings"
)

type RegisterRequest struct {
	Identity  string
	Name      string
	StudentID string
	Grade     string
}

func (r RegisterRequest) normalized() RegisterRequest {
	return RegisterRequest{
		Identity:  strings.TrimSpace(r.Identity),
		Name:      strings.TrimSpace(r.Name),
		StudentID: strings.TrimSpace(r.StudentID),
		Grade:     strings.TrimSpace(r.Grade),
	}
}

func (r RegisterRequest) complete() bool {
	return r.Identity != "" && r.Name != "" && r.StudentID != "" && r.Grade != ""
}

// Register appends a directory row for a new identity. The duplicate check
// and the append happen under the identity's lock, so concurrent requests for
// the same identity create exactly one row.
func (s *VendingService) Register(ctx context.Context, req RegisterRequest) error {
	req = req.normalized()
	if !req.complete() {
		return ErrInvalidInput
	}

	unlock, err := s.locker.Lock(ctx, userLockKey(req.Identity))
	if err != nil {
		return fmt.Errorf("lock user %q: %w", req.Identity, err)
	}
	defer unlock()

	if _, exists, err := s.IsRegistered(ctx, req.Identity); err != nil {
		return err
	} else if exists {
		return ErrDuplicateRegistration
	}

	row := s.columns().Users.Row(map[string]string{
		ColUserName:      req.Name,
		ColUserStudentID: req.StudentID,
		ColUserGrade:     req.Grade,
		ColUserID:        req.Identity,
	})
	if err := s.sheets.AppendRow(ctx, s.opts.Sheets.Users, row); err != nil {
		return storeFault("append user", err)
	}

	log.Printf("registered %s as %s", req.Identity, req.Name)
	return nil
}
