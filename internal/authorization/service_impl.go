package authorization

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/smallbiznis/esimmock/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

//go:embed model.conf
var modelText string

//go:embed policy.csv
var policyText string

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log         *zap.Logger
	enforcer    *casbin.SyncedEnforcer
	credentials []credential
}

type credential struct {
	key    string
	secret string
	role   string
}

func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(policyText))
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(false)
	return enforcer, nil
}

func NewService(p Params) Service {
	auth := p.Config.Auth
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		credentials: []credential{
			{key: auth.AdminKey, secret: auth.AdminSecret, role: RoleAdmin},
			{key: auth.APIKey, secret: auth.APISecret, role: RoleAPIClient},
		},
	}
}

// Authenticate matches a Basic credential pair. Configured secrets may be
// plain text or bcrypt hashes.
func (s *ServiceImpl) Authenticate(ctx context.Context, key, secret string) (*Principal, error) {
	key = strings.TrimSpace(key)
	if key == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	for _, cred := range s.credentials {
		if cred.key == "" || subtle.ConstantTimeCompare([]byte(cred.key), []byte(key)) != 1 {
			continue
		}
		if !secretMatches(cred.secret, secret) {
			break
		}
		return &Principal{Key: cred.key, Role: cred.role}, nil
	}
	s.log.Debug("authentication failed", zap.String("key", key))
	return nil, ErrInvalidCredentials
}

func (s *ServiceImpl) Authorize(ctx context.Context, role, object, action string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce("role:"+role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func secretMatches(configured, presented string) bool {
	if isBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return configured != "" && subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
