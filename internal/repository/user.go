package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/users-service/internal/model"
	"github.com/deppfellow/users-service/internal/transactor"
	"github.com/jackc/pgx/v5"
)

const (
	selectUsers = `SELECT id, version, name, age, country_of_residence FROM users`

	insertUser = `INSERT INTO users (name, age, country_of_residence)
		VALUES ($1, $2, $3)
		RETURNING id, version`

	// The version predicate makes this a conditional update: a stale
	// version matches no row.
	updateUser = `UPDATE users
		SET name = $1, age = $2, country_of_residence = $3, version = version + 1, updated_at = now()
		WHERE id = $4 AND version = $5
		RETURNING version`

	deleteUser = `DELETE FROM users WHERE id = $1`
)

type UserRepository struct {
	executor *transactor.Executor
}

func NewUserRepository(executor *transactor.Executor) *UserRepository {
	return &UserRepository{executor: executor}
}

// FindByID resolves to nil when no user has the given id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) *transactor.Future[*model.User] {
	return transactor.Run(ctx, r.executor, "users.find_by_id", func(ctx context.Context, tx pgx.Tx) (*model.User, error) {
		return findUserByID(ctx, tx, id)
	})
}

func (r *UserRepository) FindAll(ctx context.Context) *transactor.Future[[]model.User] {
	return transactor.Run(ctx, r.executor, "users.find_all", func(ctx context.Context, tx pgx.Tx) ([]model.User, error) {
		rows, err := tx.Query(ctx, selectUsers+` ORDER BY id`)
		if err != nil {
			return nil, fmt.Errorf("query users: %w", err)
		}
		return collectUsers(rows)
	})
}

// FindByName matches the name exactly.
func (r *UserRepository) FindByName(ctx context.Context, name string) *transactor.Future[[]model.User] {
	return transactor.Run(ctx, r.executor, "users.find_by_name", func(ctx context.Context, tx pgx.Tx) ([]model.User, error) {
		rows, err := tx.Query(ctx, selectUsers+` WHERE name = $1 ORDER BY id`, name)
		if err != nil {
			return nil, fmt.Errorf("query users name=%q: %w", name, err)
		}
		return collectUsers(rows)
	})
}

// Save inserts a NewUser or conditionally updates a User.
//
// An update whose version does not match the stored row fails with
// *model.StaleVersionError and writes nothing. The resolved user carries
// the store-assigned id and version.
func (r *UserRepository) Save(ctx context.Context, u model.Saveable) *transactor.Future[model.User] {
	return transactor.Run(ctx, r.executor, "users.save", func(ctx context.Context, tx pgx.Tx) (model.User, error) {
		switch u := u.(type) {
		case model.NewUser:
			return insert(ctx, tx, u)
		case model.User:
			return update(ctx, tx, u)
		default:
			return model.User{}, fmt.Errorf("save user: unsupported value %T", u)
		}
	})
}

// Delete removes the user if it exists. Deleting an unknown id succeeds.
func (r *UserRepository) Delete(ctx context.Context, id int64) *transactor.Future[transactor.Done] {
	return transactor.Run(ctx, r.executor, "users.delete", func(ctx context.Context, tx pgx.Tx) (transactor.Done, error) {
		user, err := findUserByID(ctx, tx, id)
		if err != nil {
			return transactor.Done{}, err
		}
		if user == nil {
			return transactor.Done{}, nil
		}

		if _, err := tx.Exec(ctx, deleteUser, id); err != nil {
			return transactor.Done{}, fmt.Errorf("delete user id=%d: %w", id, err)
		}
		return transactor.Done{}, nil
	})
}

// findUserByID is shared by FindByID and Delete.
func findUserByID(ctx context.Context, tx pgx.Tx, id int64) (*model.User, error) {
	user, err := scanUser(tx.QueryRow(ctx, selectUsers+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user id=%d: %w", id, err)
	}
	return &user, nil
}

func insert(ctx context.Context, tx pgx.Tx, u model.NewUser) (model.User, error) {
	var id, version int64
	err := tx.QueryRow(ctx, insertUser, u.Name, u.Age, u.CountryOfResidence).Scan(&id, &version)
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u.Persisted(id, version), nil
}

func update(ctx context.Context, tx pgx.Tx, u model.User) (model.User, error) {
	var version int64
	err := tx.QueryRow(ctx, updateUser, u.Name, u.Age, u.CountryOfResidence, u.ID, u.Version).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, &model.StaleVersionError{ID: u.ID, Version: u.Version}
		}
		return model.User{}, fmt.Errorf("update user id=%d: %w", u.ID, err)
	}

	u.Version = version
	return u, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Version, &u.Name, &u.Age, &u.CountryOfResidence)
	return u, err
}

// collectUsers never returns a nil slice on success.
func collectUsers(rows pgx.Rows) ([]model.User, error) {
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}
