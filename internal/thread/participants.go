package thread

import (
	"github.com/caseline-io/caseline-backend/internal/models"
)

// Participants derives the unique users taking part in a set of messages.
// For each message the sender is considered before the recipient, and users
// are deduplicated by identity across the whole set. Pure function; the
// messages must carry preloaded mailbox users.
func Participants(messages []models.Message) []models.User {
	seen := make(map[uint]bool, len(messages))
	users := make([]models.User, 0, len(messages))

	for i := range messages {
		for _, u := range []*models.User{messages[i].Sender(), messages[i].Recipient()} {
			if u == nil || seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			users = append(users, *u)
		}
	}
	return users
}

// FirstOfRole scans messages in the given order, checking each message's
// sender then recipient, and returns the first user with the role. The
// scan order is the caller's contract: pass oldest-first to find who held
// the role earliest in the conversation.
func FirstOfRole(messages []models.Message, role models.Role) (*models.User, bool) {
	for i := range messages {
		for _, u := range []*models.User{messages[i].Sender(), messages[i].Recipient()} {
			if u != nil && u.Role == role {
				return u, true
			}
		}
	}
	return nil, false
}
