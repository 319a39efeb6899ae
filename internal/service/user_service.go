package service

import (
	"context"

	"chatcore/internal/domain"
	"chatcore/internal/profiledirectory"
)

// UserDirectoryService backs GET /api/users: it resolves known user IDs against the Store for last-seen
// data and decorates them with display metadata from the Profile
// Directory Client, degrading to "Unknown User" on a failed lookup.
type UserDirectoryService struct {
	store    domain.Store
	profiles *profiledirectory.Client
}

func NewUserDirectoryService(store domain.Store, profiles *profiledirectory.Client) *UserDirectoryService {
	return &UserDirectoryService{store: store, profiles: profiles}
}

// UserSummary is the decorated response for one user.
type UserSummary struct {
	domain.User
	profiledirectory.Profile
}

// List resolves display metadata for a set of user IDs known to the
// Store (e.g. conversation participants). An empty ids lists every known
// user, backing the GET /api/users directory endpoint.
func (s *UserDirectoryService) List(ctx context.Context, ids []string) ([]UserSummary, error) {
	var users []*domain.User
	var err error
	if len(ids) == 0 {
		users, err = s.store.ListAllUsers(ctx)
	} else {
		users, err = s.store.ListUsers(ctx, ids)
	}
	if err != nil {
		return nil, err
	}

	lookupIDs := ids
	if len(lookupIDs) == 0 {
		lookupIDs = make([]string, 0, len(users))
		for _, u := range users {
			lookupIDs = append(lookupIDs, u.ID)
		}
	}
	profiles := s.profiles.Lookup(ctx, lookupIDs)

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{User: *u, Profile: profiles[u.ID]})
	}
	return out, nil
}

// Touch records userID's presence in the Store. The HTTP auth middleware
// calls it for every request whose bearer token verifies, before the
// handler runs; WebSocket connections do not call it.
func (s *UserDirectoryService) Touch(ctx context.Context, id string) error {
	if err := s.store.UpsertUser(ctx, &domain.User{ID: id}); err != nil {
		return err
	}
	return nil
}
