package routing

import (
	"errors"

	"github.com/caseline-io/caseline-backend/internal/models"
)

// Typed routing errors. Each "any available X" lookup that finds nobody
// raises the matching error; callers pick a fallback role or surface a
// generic unavailability outcome. None of these are fatal.
var (
	ErrNoSpecialistAvailable  = errors.New("no specialist available")
	ErrNoCoordinatorAvailable = errors.New("no coordinator available")
	ErrNoRequesterAvailable   = errors.New("no requester available")
	ErrUnsupportedRole        = errors.New("unsupported sender role")
)

// IsUnavailable reports whether the error is any of the four routing errors
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNoSpecialistAvailable) ||
		errors.Is(err, ErrNoCoordinatorAvailable) ||
		errors.Is(err, ErrNoRequesterAvailable) ||
		errors.Is(err, ErrUnsupportedRole)
}

// unavailableFor maps a role to its typed unavailability error
func unavailableFor(role models.Role) error {
	switch role {
	case models.RoleSpecialist:
		return ErrNoSpecialistAvailable
	case models.RoleCoordinator:
		return ErrNoCoordinatorAvailable
	case models.RoleRequester:
		return ErrNoRequesterAvailable
	}
	return ErrUnsupportedRole
}
