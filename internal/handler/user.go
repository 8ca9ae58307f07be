package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/deppfellow/users-service/internal/errs"
	"github.com/deppfellow/users-service/internal/model"
	"github.com/deppfellow/users-service/internal/server"
	"github.com/deppfellow/users-service/internal/service"
	"github.com/deppfellow/users-service/internal/transactor"
	"github.com/deppfellow/users-service/internal/validation"
	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"
)

var (
	userNotFoundCode     = "USER_NOT_FOUND"
	userStaleVersionCode = "USER_STALE_VERSION"
)

// UserService is what the user endpoints need. *service.UserService
// implements it.
type UserService interface {
	Get(ctx context.Context, id int64) *transactor.Future[*model.User]
	List(ctx context.Context, name string) *transactor.Future[[]model.User]
	Save(ctx context.Context, u model.Saveable) *transactor.Future[service.SaveResult]
	Delete(ctx context.Context, id int64) *transactor.Future[transactor.Done]
}

type GetUserRequest struct {
	ID int64 `param:"id" validate:"gt=0"`
}

func (r *GetUserRequest) Validate() error {
	return validation.Struct(r)
}

type ListUsersRequest struct {
	Name string `query:"name" validate:"max=255"`
}

func (r *ListUsersRequest) Validate() error {
	return validation.Struct(r)
}

// SaveUserRequest creates a user when ID is absent or <= 0 and updates
// the stored user otherwise. Version must echo the version last read.
type SaveUserRequest struct {
	ID                 int64  `json:"id"`
	Version            int64  `json:"version" validate:"gte=0"`
	Name               string `json:"name" validate:"required,max=255"`
	Age                int    `json:"age" validate:"gte=0,lte=200"`
	CountryOfResidence string `json:"countryOfResidence" validate:"required,max=64"`
}

func (r *SaveUserRequest) Validate() error {
	return validation.Struct(r)
}

// Saveable converts the request into the variant the repository stores.
func (r *SaveUserRequest) Saveable() model.Saveable {
	return model.User{
		ID:      r.ID,
		Version: r.Version,
		Attributes: model.Attributes{
			Name:               r.Name,
			Age:                r.Age,
			CountryOfResidence: r.CountryOfResidence,
		},
	}.AsSaveable()
}

type DeleteUserRequest struct {
	ID int64 `param:"id" validate:"gt=0"`
}

func (r *DeleteUserRequest) Validate() error {
	return validation.Struct(r)
}

// SavedUser is the body of POST /users. It answers 201 when the user was
// created and 200 when it was updated.
type SavedUser struct {
	model.User
	created bool
}

func (s SavedUser) StatusCode() int {
	if s.created {
		return http.StatusCreated
	}
	return http.StatusOK
}

type DeletedUser struct {
	ID int64 `json:"id"`
}

type UserHandler struct {
	Handler
	users UserService
}

func NewUserHandler(s *server.Server, users UserService) *UserHandler {
	return &UserHandler{
		Handler: NewHandler(s),
		users:   users,
	}
}

func (h *UserHandler) GetUser(c echo.Context, req *GetUserRequest) (*model.User, error) {
	ctx := c.Request().Context()

	user, err := h.users.Get(ctx, req.ID).Await(ctx)
	if err != nil {
		return nil, userError(err)
	}
	if user == nil {
		return nil, errs.NewNotFoundError(fmt.Sprintf("User %d not found", req.ID), true, &userNotFoundCode)
	}
	return user, nil
}

func (h *UserHandler) ListUsers(c echo.Context, req *ListUsersRequest) ([]model.User, error) {
	ctx := c.Request().Context()

	users, err := h.users.List(ctx, req.Name).Await(ctx)
	if err != nil {
		return nil, userError(err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func (h *UserHandler) SaveUser(c echo.Context, req *SaveUserRequest) (SavedUser, error) {
	ctx := c.Request().Context()

	result, err := h.users.Save(ctx, req.Saveable()).Await(ctx)
	if err != nil {
		return SavedUser{}, userError(err)
	}
	return SavedUser{User: result.User, created: result.Created}, nil
}

func (h *UserHandler) DeleteUser(c echo.Context, req *DeleteUserRequest) (DeletedUser, error) {
	ctx := c.Request().Context()

	if _, err := h.users.Delete(ctx, req.ID).Await(ctx); err != nil {
		return DeletedUser{}, userError(err)
	}
	return DeletedUser{ID: req.ID}, nil
}

// userError maps domain failures onto HTTP errors. Anything else is a
// store failure: it gets a stack trace for the logs and is translated by
// the global error handler.
func userError(err error) error {
	var stale *model.StaleVersionError
	switch {
	case errors.As(err, &stale):
		return errs.NewConflictError(
			fmt.Sprintf("User %d was modified concurrently: version %d is stale", stale.ID, stale.Version),
			true,
			&userStaleVersionCode,
		)
	case errors.Is(err, model.ErrStaleVersion):
		return errs.NewConflictError("User was modified concurrently", true, &userStaleVersionCode)
	case errors.Is(err, transactor.ErrClosed):
		return errs.NewServiceUnavailableError("Service is shutting down")
	default:
		return pkgerrors.WithStack(err)
	}
}

// Request constructors for Handle; each call yields a fresh payload.

func NewGetUserRequest() *GetUserRequest       { return &GetUserRequest{} }
func NewListUsersRequest() *ListUsersRequest   { return &ListUsersRequest{} }
func NewSaveUserRequest() *SaveUserRequest     { return &SaveUserRequest{} }
func NewDeleteUserRequest() *DeleteUserRequest { return &DeleteUserRequest{} }
