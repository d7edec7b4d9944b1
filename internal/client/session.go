package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hypernova-labs/invoice-service/internal/models"
)

const sessionKey = "session"

// Authenticator intercambia credenciales por un bearer token
type Authenticator interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	SetToken(token string)
}

type sessionState struct {
	Token string          `json:"token"`
	User  models.UserInfo `json:"user"`
}

// Session conserva el login entre ejecuciones y la vista de preferencias del
// usuario. La vista se crea en el login y se cierra en el logout.
type Session struct {
	kv    *FileKV
	auth  Authenticator
	state *sessionState
	prefs *Preferences
}

// OpenSession restaura el login guardado, si hay, y pasa su token a auth
func OpenSession(kv *FileKV, auth Authenticator) *Session {
	s := &Session{kv: kv, auth: auth}
	var state sessionState
	if err := kv.Get(sessionKey, &state); err == nil && state.Token != "" {
		s.begin(&state)
	}
	return s
}

// Signup registra al usuario y deja la sesión iniciada
func (s *Session) Signup(ctx context.Context, name, email, password string) (*models.UserInfo, error) {
	resp, err := s.auth.Signup(ctx, &models.SignupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return s.store(ctx, resp)
}

// Login reemplaza la sesión actual
func (s *Session) Login(ctx context.Context, email, password string) (*models.UserInfo, error) {
	resp, err := s.auth.Login(ctx, &models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return s.store(ctx, resp)
}

func (s *Session) store(ctx context.Context, resp *models.AuthResponse) (*models.UserInfo, error) {
	state := &sessionState{Token: resp.Token, User: resp.User}
	if err := s.kv.Put(ctx, sessionKey, state); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	s.end()
	s.begin(state)
	return &state.User, nil
}

// Logout olvida el token y cierra las preferencias del usuario
func (s *Session) Logout(ctx context.Context) error {
	if err := s.kv.Remove(ctx, sessionKey); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	s.end()
	return nil
}

func (s *Session) begin(state *sessionState) {
	s.state = state
	s.auth.SetToken(state.Token)
	s.prefs = NewPreferences(s.kv, ownerKey(state.User))
}

func (s *Session) end() {
	if s.prefs != nil {
		s.prefs.Close()
	}
	s.prefs = nil
	s.state = nil
	s.auth.SetToken("")
}

// ownerKey usa el email como prefijo; si falta, el id del usuario
func ownerKey(u models.UserInfo) string {
	if email := strings.ToLower(strings.TrimSpace(u.Email)); email != "" {
		return email
	}
	return u.ID.String()
}

// LoggedIn indica si hay un token
func (s *Session) LoggedIn() bool { return s.state != nil }

// User devuelve el usuario con sesión iniciada
func (s *Session) User() (models.UserInfo, error) {
	if s.state == nil {
		return models.UserInfo{}, fmt.Errorf("%w: not logged in", models.ErrUnauthorized)
	}
	return s.state.User, nil
}

// Preferences devuelve la vista de preferencias del usuario actual
func (s *Session) Preferences() (*Preferences, error) {
	if s.prefs == nil {
		return nil, fmt.Errorf("%w: not logged in", models.ErrUnauthorized)
	}
	return s.prefs, nil
}

// Draft devuelve el borrador en curso, o uno nuevo si no hay ninguno guardado
func (s *Session) Draft(now time.Time, setSize int) (Draft, error) {
	prefs, err := s.Preferences()
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	err = prefs.Get(PrefDraft, &d)
	if errors.Is(err, ErrPrefNotFound) {
		return NewDraft(now, setSize, prefs.Branding()), nil
	}
	if err != nil {
		return Draft{}, fmt.Errorf("reading draft: %w", err)
	}
	return d, nil
}

// PutDraft guarda el borrador en curso
func (s *Session) PutDraft(ctx context.Context, d Draft) error {
	prefs, err := s.Preferences()
	if err != nil {
		return err
	}
	return prefs.Put(ctx, PrefDraft, d)
}

// ResetDraft descarta el borrador en curso y empieza uno nuevo
func (s *Session) ResetDraft(ctx context.Context, now time.Time, setSize int) (Draft, error) {
	prefs, err := s.Preferences()
	if err != nil {
		return Draft{}, err
	}
	d := NewDraft(now, setSize, prefs.Branding())
	return d, prefs.Put(ctx, PrefDraft, d)
}
