package otp

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avdeev-dm/accountd/internal/common"
	"github.com/avdeev-dm/accountd/internal/dbx"
)

// Codes are 6-digit numbers in [100000, 999999], drawn uniformly from
// crypto/rand. Single-use and short-lived, which bounds guessing attempts.
const (
	codeMin   = 100000
	codeRange = 900000
)

// Engine drives the per-(email, purpose) challenge state machine:
// none → active → consumed | superseded | expired.
//
// Issue and Verify each run inside a single DB transaction, so two concurrent
// resend requests cannot both pass the cooldown check.
type Engine struct {
	db       *sql.DB
	repos    func(dbx.DBTX) Repository
	lifetime time.Duration
	cooldown time.Duration
	now      func() time.Time
}

func NewEngine(db *sql.DB, repos func(dbx.DBTX) Repository, lifetime, cooldown time.Duration) *Engine {
	return &Engine{
		db:       db,
		repos:    repos,
		lifetime: lifetime,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Issue generates and persists a fresh code for the (email, purpose) pair and
// returns it for delivery. When the most recent challenge for the pair is
// still inside the resend cooldown a *common.RateLimitedError with the
// remaining wait is returned. Otherwise all prior challenges for the pair are
// superseded (deleted) before the new one is inserted.
func (e *Engine) Issue(ctx context.Context, email string, purpose Purpose) (string, error) {
	var code string

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := e.repos(tx)
		now := e.now()

		if err := repo.Lock(ctx, email, purpose); err != nil {
			return err
		}

		last, err := repo.FindLatest(ctx, email, purpose)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if last != nil {
			cooldownEnd := last.CreatedAt.Add(e.cooldown)
			if now.Before(cooldownEnd) {
				return &common.RateLimitedError{RetryAfter: ceilSeconds(cooldownEnd.Sub(now))}
			}
			if err := repo.DeleteAll(ctx, email, purpose); err != nil {
				return err
			}
		}

		code, err = generateCode()
		if err != nil {
			return fmt.Errorf("error generating code: %v", err)
		}

		return repo.Create(ctx, &Challenge{
			Email:     email,
			Code:      code,
			Purpose:   purpose,
			CreatedAt: now,
			ExpiresAt: now.Add(e.lifetime),
		})
	})
	if err != nil {
		return "", err
	}

	return code, nil
}

// Verify consumes the challenge matching (email, code, purpose). A missing or
// expired challenge yields common.ErrInvalidOrExpiredOtp. On success the
// challenge row is deleted, so a second attempt with the same code fails.
func (e *Engine) Verify(ctx context.Context, email, code string, purpose Purpose) error {
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := e.repos(tx)

		if err := repo.Lock(ctx, email, purpose); err != nil {
			return err
		}

		challenge, err := repo.Find(ctx, email, code, purpose)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredOtp
			}
			return err
		}

		if !e.now().Before(challenge.ExpiresAt) {
			// Expired rows are left in place; the next Issue supersedes them.
			return common.ErrInvalidOrExpiredOtp
		}

		if err := repo.Delete(ctx, challenge.ID); err != nil {
			// A concurrent verification consumed the row first.
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredOtp
			}
			return err
		}
		return nil
	})
}

// Check reports whether the challenge matching (email, code, purpose) is
// live, without consuming it. Callers that must run other validations
// between acceptance and consumption use Check first and Verify last;
// Verify stays authoritative.
func (e *Engine) Check(ctx context.Context, email, code string, purpose Purpose) error {
	repo := e.repos(e.db)

	challenge, err := repo.Find(ctx, email, code, purpose)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredOtp
		}
		return err
	}

	if !e.now().Before(challenge.ExpiresAt) {
		return common.ErrInvalidOrExpiredOtp
	}

	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func ceilSeconds(d time.Duration) time.Duration {
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}
