// Package thread reconstructs conversation threads from parent links and
// derives their participants.
package thread

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
)

// Default traversal bounds. Both walks also keep a visited set, so the
// bounds only protect against pathological depth; they never mask a cycle.
const (
	DefaultRootDepth    = 10
	DefaultCollectDepth = 20
)

// Config bounds the resolver's traversals
type Config struct {
	RootDepth    int
	CollectDepth int
}

// Resolver walks parent links to find thread roots and collects full threads
type Resolver struct {
	messages     repository.MessageRepository
	rootDepth    int
	collectDepth int
}

// NewResolver creates a Resolver. Non-positive bounds fall back to defaults.
func NewResolver(messages repository.MessageRepository, cfg Config) *Resolver {
	if cfg.RootDepth <= 0 {
		cfg.RootDepth = DefaultRootDepth
	}
	if cfg.CollectDepth <= 0 {
		cfg.CollectDepth = DefaultCollectDepth
	}
	return &Resolver{
		messages:     messages,
		rootDepth:    cfg.RootDepth,
		collectDepth: cfg.CollectDepth,
	}
}

// FindRoot walks parent links upward until it reaches a message with no
// parent. A missing parent is not an error: the chain is simply truncated
// at the last resolvable message, which then acts as the root. The walk
// stops at the depth bound or on a revisited ID.
func (r *Resolver) FindRoot(ctx context.Context, message *models.Message) (*models.Message, error) {
	if message == nil {
		return nil, fmt.Errorf("message: %w", repository.ErrInvalidInput)
	}
	if message.IsRoot() {
		return message, nil
	}

	current := message
	visited := map[uint]bool{message.ID: true}

	for depth := 0; depth < r.rootDepth; depth++ {
		if current.ParentMessageID == nil {
			return current, nil
		}
		parentID := *current.ParentMessageID
		if visited[parentID] {
			// Parent cycle; treat the last unvisited message as the root.
			return current, nil
		}

		parent, err := r.messages.GetByID(ctx, parentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Parent was deleted; the chain ends here.
				return current, nil
			}
			return nil, fmt.Errorf("failed to resolve parent: %w", err)
		}

		visited[parent.ID] = true
		current = parent
	}

	return current, nil
}

// FindRootByID loads a message and resolves its thread root. Unlike a
// broken parent link mid-walk, an unknown starting ID is an error.
func (r *Resolver) FindRootByID(ctx context.Context, id uint) (*models.Message, error) {
	message, err := r.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.FindRoot(ctx, message)
}

// CollectThread expands breadth-first from the root, following reply links
// level by level until the frontier is empty or the depth bound is hit.
// The result always contains the root and is ordered by creation time
// ascending; presentation layers reverse it for newest-first display.
func (r *Resolver) CollectThread(ctx context.Context, rootID uint) ([]models.Message, error) {
	if _, err := r.messages.GetByID(ctx, rootID); err != nil {
		return nil, err
	}

	visited := map[uint]bool{rootID: true}
	ids := []uint{rootID}
	frontier := []uint{rootID}

	for depth := 0; depth < r.collectDepth && len(frontier) > 0; depth++ {
		children, err := r.messages.ListChildren(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to expand thread: %w", err)
		}

		next := make([]uint, 0, len(children))
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			ids = append(ids, child.ID)
			next = append(next, child.ID)
		}
		frontier = next
	}

	messages, err := r.messages.GetManyWithParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// NewestFirst returns a copy of the messages sorted by creation time
// descending, the order threads are displayed in.
func NewestFirst(messages []models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	copy(out, messages)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
