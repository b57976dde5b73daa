package postgres

import (
	"context"
	"database/sql"
	"time"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

const userColumns = `id, email, password_hash, name, intent, identity_verification, payout_verification,
	has_payment_method, COALESCE(payment_method_ref, ''), active, version, created_on, updated_on`

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	logger.EnterMethod("userRepository.Create", "email", u.Email)

	query := `INSERT INTO users (email, password_hash, name, intent, identity_verification, payout_verification,
	          has_payment_method, payment_method_ref, active, version, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10) RETURNING id`
	now := time.Now().UTC()
	logger.DatabaseCall("INSERT", "users", "email", u.Email)
	err := r.db.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.Name, u.Intent,
		u.IdentityVerification, u.PayoutVerification, u.HasPaymentMethod, nullString(u.PaymentMethodRef),
		u.Active, now).Scan(&u.ID)
	logger.DatabaseResult("INSERT", 1, err, "userID", u.ID)
	if err != nil {
		err = translate(err)
		logger.ExitMethodWithError("userRepository.Create", err, "email", u.Email)
		return err
	}

	u.Version = 1
	u.CreatedOn = now
	u.UpdatedOn = now
	logger.ExitMethod("userRepository.Create", "userID", u.ID)
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	logger.DatabaseCall("SELECT", "users", "email", email)

	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, domain.NormalizeEmail(email)).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Intent, &u.IdentityVerification, &u.PayoutVerification,
		&u.HasPaymentMethod, &u.PaymentMethodRef, &u.Active, &u.Version, &u.CreatedOn, &u.UpdatedOn,
	)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	logger.EnterMethod("userRepository.Update", "email", u.Email, "version", u.Version)

	query := `UPDATE users SET name=$1, intent=$2, identity_verification=$3, payout_verification=$4,
	          has_payment_method=$5, payment_method_ref=$6, active=$7, version=version+1, updated_on=$8
	          WHERE email=$9 AND version=$10`
	now := time.Now().UTC()
	logger.DatabaseCall("UPDATE", "users", "email", u.Email)
	res, err := r.db.ExecContext(ctx, query, u.Name, u.Intent, u.IdentityVerification, u.PayoutVerification,
		u.HasPaymentMethod, nullString(u.PaymentMethodRef), u.Active, now, u.Email, u.Version)
	if err != nil {
		logger.ExitMethodWithError("userRepository.Update", err)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err)
	if err != nil {
		return err
	}
	if n == 0 {
		logger.ExitMethodWithError("userRepository.Update", repository.ErrVersionConflict, "email", u.Email)
		return repository.ErrVersionConflict
	}

	u.Version++
	u.UpdatedOn = now
	logger.ExitMethod("userRepository.Update", "email", u.Email, "version", u.Version)
	return nil
}
