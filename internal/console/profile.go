package console

import (
	"context"

	"github.com/dropDatabas3/rbacadm/internal/observability/logger"
	"github.com/dropDatabas3/rbacadm/internal/rbac"
)

// Profile es la vista del propio perfil del actor.
type Profile struct {
	Name     string
	Email    string
	RoleName string
	IsAdmin  bool
}

// Profile arma la vista de perfil desde la sesión; no toca la red.
func (s *Service) Profile() (Profile, error) {
	if err := s.requireAuth(); err != nil {
		return Profile{}, err
	}
	return Profile{
		Name:     s.session.Name,
		Email:    s.session.Email,
		RoleName: s.session.Role.Name(),
		IsAdmin:  s.session.IsAdmin(),
	}, nil
}

// UpdateProfile aplica un patch de perfil. La validación local corta antes
// de cualquier llamada de red; en éxito la sesión actualizada se vuelve a
// persistir. Los campos de password del patch mueren con este intento.
func (s *Service) UpdateProfile(ctx context.Context, patch rbac.ProfilePatch) (Notification, error) {
	log := logger.From(ctx).With(logger.Layer("console"), logger.Op("UpdateProfile"))

	if err := s.requireAuth(); err != nil {
		return notifyErr(err), err
	}

	if _, err := s.session.UpdateProfile(ctx, s.backend, patch); err != nil {
		return notifyErr(err), err
	}

	if err := s.creds.Save(ctx, s.session); err != nil {
		log.Warn("could not persist updated session", logger.Err(err))
	}
	return notifyOK("profile updated"), nil
}

// RefreshSession re-lee la identidad canónica desde el backend. Se usa
// después de una anomalía de permisos para re-verificar el estado real.
func (s *Service) RefreshSession(ctx context.Context) error {
	if err := s.requireAuth(); err != nil {
		return err
	}

	me, err := s.backend.Profile(ctx)
	if err != nil {
		return err
	}
	s.session.Name = me.Name
	s.session.Email = me.Email
	s.session.Role = me.Role

	if err := s.creds.Save(ctx, s.session); err != nil {
		logger.From(ctx).Warn("could not persist refreshed session", logger.Err(err))
	}
	return nil
}
