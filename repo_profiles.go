package registration

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeActivationKeySQL is a compare-and-set on the activated flag. Of
// two concurrent activation attempts only one can match the WHERE clause;
// the loser observes zero rows and reports AlreadyActivated.
var ConsumeActivationKeySQL = `UPDATE "registration_profiles" AS "regp"
SET
	"activated" = TRUE,
	"activation_key" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"regp"."activation_key" = ?
AND "regp"."activated" = FALSE
RETURNING *;`

// Profiles is the persistence surface for registration profiles.
type Profiles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*RegistrationProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*RegistrationProfile, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*RegistrationProfile, error)
	GetByActivationKey(ctx context.Context, key string) (*RegistrationProfile, error)
	GetByActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*RegistrationProfile, error)
	Create(ctx context.Context, record *RegistrationProfile) (*RegistrationProfile, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *RegistrationProfile) (*RegistrationProfile, error)
	ConsumeActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*RegistrationProfile, error)
	SetApprovalStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status ApprovalStatus) (*RegistrationProfile, error)
	Count(ctx context.Context) (int, error)
}

type profiles struct {
	repository.Repository[*RegistrationProfile]
	db *bun.DB
}

var _ Profiles = (*profiles)(nil)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*RegistrationProfile](db, repository.ModelHandlers[*RegistrationProfile]{
		NewRecord: func() *RegistrationProfile {
			return &RegistrationProfile{}
		},
		GetID: func(record *RegistrationProfile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *RegistrationProfile, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "activation_key"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) GetByID(ctx context.Context, id uuid.UUID) (*RegistrationProfile, error) {
	return a.getByColumnTx(ctx, a.db, "id", id.String())
}

func (a *profiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*RegistrationProfile, error) {
	return a.GetByUserIDTx(ctx, a.db, userID)
}

func (a *profiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*RegistrationProfile, error) {
	return a.getByColumnTx(ctx, tx, "user_id", userID.String())
}

func (a *profiles) GetByActivationKey(ctx context.Context, key string) (*RegistrationProfile, error) {
	return a.GetByActivationKeyTx(ctx, a.db, key)
}

func (a *profiles) GetByActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*RegistrationProfile, error) {
	return a.getByColumnTx(ctx, tx, "activation_key", key)
}

func (a *profiles) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*RegistrationProfile, error) {
	record := &RegistrationProfile{}

	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *profiles) Create(ctx context.Context, record *RegistrationProfile) (*RegistrationProfile, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *profiles) CreateTx(ctx context.Context, tx bun.IDB, record *RegistrationProfile) (*RegistrationProfile, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.EnsureApprovalStatus()
	return a.Repository.CreateTx(ctx, tx, record)
}

// ConsumeActivationKeyTx burns the key and flips the activated flag in a
// single conditional update. Returns ErrAlreadyActivated when the row was
// consumed by an earlier or concurrent request.
func (a *profiles) ConsumeActivationKeyTx(ctx context.Context, tx bun.IDB, key string) (*RegistrationProfile, error) {
	record := &RegistrationProfile{}
	err := tx.NewRaw(ConsumeActivationKeySQL, ActivatedSentinel, key).Scan(ctx, record)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAlreadyActivated
		}
		return nil, err
	}

	return record, nil
}

func (a *profiles) SetApprovalStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status ApprovalStatus) (*RegistrationProfile, error) {
	record := &RegistrationProfile{
		ID:             id,
		ApprovalStatus: status,
	}
	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *profiles) Count(ctx context.Context) (int, error) {
	return a.db.NewSelect().Model((*RegistrationProfile)(nil)).Count(ctx)
}
