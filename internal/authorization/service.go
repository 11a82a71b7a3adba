package authorization

import (
	"context"
	"errors"
)

const (
	RoleAPIClient = "api_client"
	RoleAdmin     = "admin"
)

const (
	ObjectEsim    = "esim"
	ObjectCatalog = "catalog"
	ObjectAccount = "account"
	ObjectAdmin   = "admin"
)

const (
	ActionEsimView       = "esim.view"
	ActionEsimProvision  = "esim.provision"
	ActionEsimAttachPlan = "esim.attach_plan"
	ActionEsimDeactivate = "esim.deactivate"

	ActionCatalogView   = "catalog.view"
	ActionCatalogManage = "catalog.manage"

	ActionAccountView = "account.view"

	ActionAdminSimulate   = "admin.simulate"
	ActionAdminReset      = "admin.reset"
	ActionAdminSeed       = "admin.seed"
	ActionAdminStatistics = "admin.statistics"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrInvalidObject      = errors.New("invalid_object")
	ErrInvalidAction      = errors.New("invalid_action")
	ErrForbidden          = errors.New("forbidden")
)

// Principal is an authenticated caller.
type Principal struct {
	Key  string
	Role string
}

type Service interface {
	Authenticate(ctx context.Context, key, secret string) (*Principal, error)
	Authorize(ctx context.Context, role, object, action string) error
}
