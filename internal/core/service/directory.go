package service

import (
	"context"
	"strings"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

// ResolveName returns the display name registered for identity. Unknown or
// empty identities resolve to domain.UnknownUserName rather than an error.
func (s *VendingService) ResolveName(ctx context.Context, identity string) (string, error) {
	name, ok, err := s.IsRegistered(ctx, identity)
	if err != nil {
		return "", err
	}
	if !ok {
		return domain.UnknownUserName, nil
	}
	return name, nil
}

func (s *VendingService) IsRegistered(ctx context.Context, identity string) (string, bool, error) {
	user, ok, err := s.lookupUser(ctx, identity)
	if err != nil || !ok {
		return "", false, err
	}
	return user.DisplayName, true, nil
}

func (s *VendingService) lookupUser(ctx context.Context, identity string) (domain.User, bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.User{}, false, nil
	}

	records, err := s.sheets.Records(ctx, s.opts.Sheets.Users)
	if err != nil {
		return domain.User{}, false, storeFault("read users", err)
	}

	for _, rec := range records {
		if strings.TrimSpace(rec.Values[ColUserID]) != identity {
			continue
		}
		return domain.User{
			Identity:    identity,
			DisplayName: rec.Values[ColUserName],
			StudentID:   rec.Values[ColUserStudentID],
			Grade:       rec.Values[ColUserGrade],
		}, true, nil
	}
	return domain.User{}, false, nil
}
