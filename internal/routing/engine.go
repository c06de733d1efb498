// Package routing decides which user receives a newly composed or
// replied-to message, applying role- and age-based rules over the
// message's thread ancestry.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caseline-io/caseline-backend/internal/logger"
	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/caseline-io/caseline-backend/internal/thread"
)

// RecentWindow is the age under which a thread's root still counts as a
// live conversation. Hard business rule, not configurable.
const RecentWindow = 7 * 24 * time.Hour

// Engine resolves the recipient for a draft message. Routing is
// deterministic at the role level: the same sender role, reply context,
// conversation owner and thread age always select the same recipient role.
type Engine struct {
	users    repository.UserRepository
	resolver *thread.Resolver
	cache    *RoleCache
	audit    *logger.AuditLogger
	now      func() time.Time
}

// NewEngine creates an Engine with the given collaborators
func NewEngine(users repository.UserRepository, resolver *thread.Resolver, cache *RoleCache, audit *logger.AuditLogger) *Engine {
	return &Engine{
		users:    users,
		resolver: resolver,
		cache:    cache,
		audit:    audit,
		now:      time.Now,
	}
}

// DetermineRecipient applies the routing decision table to a draft message
// and its sender. The draft is not persisted yet; only its parent link and
// body matter here. Replies whose parent has been deleted route as new
// messages, mirroring how orphaned children become thread roots.
//
// The specialist-to-coordinator fallback for a requester's new message is
// deliberately NOT here: it belongs to the lifecycle coordinator, and only
// on that single path.
func (e *Engine) DetermineRecipient(ctx context.Context, message *models.Message, sender *models.User) (*models.User, error) {
	if sender == nil || !sender.Role.IsValid() {
		return nil, ErrUnsupportedRole
	}

	root, err := e.resolveRoot(ctx, message)
	if err != nil {
		return nil, err
	}

	var recipient *models.User
	switch sender.Role {
	case models.RoleRequester:
		recipient, err = e.routeFromRequester(ctx, sender, root)
	case models.RoleSpecialist, models.RoleCoordinator:
		recipient, err = e.routeToRequester(ctx, root)
	default:
		return nil, ErrUnsupportedRole
	}
	if err != nil {
		if e.audit != nil && IsUnavailable(err) {
			e.audit.RoutingFailure(string(sender.Role), err.Error())
		}
		return nil, err
	}

	if e.audit != nil {
		e.audit.RoutingDecision(string(sender.Role), message.ParentMessageID != nil, recipient.ID, string(recipient.Role))
	}
	return recipient, nil
}

// resolveRoot returns the thread root for a reply, or nil for a new
// message (including a reply whose parent no longer exists).
func (e *Engine) resolveRoot(ctx context.Context, message *models.Message) (*models.Message, error) {
	if message.ParentMessageID == nil {
		return nil, nil
	}
	root, err := e.resolver.FindRootByID(ctx, *message.ParentMessageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve thread root: %w", err)
	}
	return root, nil
}

func (e *Engine) routeFromRequester(ctx context.Context, sender *models.User, root *models.Message) (*models.User, error) {
	if root == nil {
		// New message: any available specialist. The coordinator
		// fallback happens one layer up.
		return e.FindAvailable(ctx, models.RoleSpecialist)
	}

	owner := root.Sender()
	recent := e.now().Sub(root.CreatedAt) <= RecentWindow

	if !recent {
		// Stale conversations always go to a coordinator, no matter
		// who owns them or who already participated.
		return e.FindAvailable(ctx, models.RoleCoordinator)
	}

	if owner != nil && owner.ID != sender.ID {
		return owner, nil
	}

	// Replying into their own live thread: prefer the specialist already
	// in the conversation, scanning oldest first.
	messages, err := e.resolver.CollectThread(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect thread: %w", err)
	}
	if specialist, ok := thread.FirstOfRole(messages, models.RoleSpecialist); ok {
		return specialist, nil
	}
	return e.FindAvailable(ctx, models.RoleSpecialist)
}

func (e *Engine) routeToRequester(ctx context.Context, root *models.Message) (*models.User, error) {
	if root != nil {
		if owner := root.Sender(); owner != nil && owner.Role == models.RoleRequester {
			return owner, nil
		}
	}
	return e.FindAvailable(ctx, models.RoleRequester)
}

// FindAvailable returns some user carrying the role, answering from the
// TTL cache when it can. A cache miss falls through to storage and refills
// the cache; an empty role raises the matching typed error.
func (e *Engine) FindAvailable(ctx context.Context, role models.Role) (*models.User, error) {
	if !role.IsValid() {
		return nil, ErrUnsupportedRole
	}

	if user, ok := e.cache.Get(role); ok {
		return user, nil
	}

	user, err := e.users.FirstByRole(ctx, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, unavailableFor(role)
		}
		return nil, fmt.Errorf("failed to look up %s: %w", role, err)
	}

	e.cache.Put(role, user)
	return user, nil
}
