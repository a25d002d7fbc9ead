package registration

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const approvalTokenPurpose = "account-approval"

// ErrInvalidApprovalToken covers expired, malformed, and wrong-purpose
// approval tokens. The HTTP layer shows one generic failure for all.
var ErrInvalidApprovalToken = goerrors.New("invalid approval token", goerrors.CategoryAuthz).
	WithTextCode("INVALID_APPROVAL_TOKEN").
	WithCode(goerrors.CodeUnauthorized)

// ApprovalTokenClaims is the payload of a staff-approval link.
type ApprovalTokenClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// ApprovalTokenService mints and verifies the signed tokens embedded in
// staff approval links.
type ApprovalTokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
}

// ApprovalTokenOption customizes the service.
type ApprovalTokenOption func(*ApprovalTokenService)

// WithApprovalTokenClock injects a custom clock (useful for tests).
func WithApprovalTokenClock(clock func() time.Time) ApprovalTokenOption {
	return func(ts *ApprovalTokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithApprovalTokenIssuer sets the iss claim.
func WithApprovalTokenIssuer(issuer string) ApprovalTokenOption {
	return func(ts *ApprovalTokenService) {
		ts.issuer = issuer
	}
}

func NewApprovalTokenService(signingKey []byte, ttl time.Duration, opts ...ApprovalTokenOption) (*ApprovalTokenService, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningSecret
	}

	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	ts := &ApprovalTokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     "go-registration",
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// Mint creates a signed, expiring token approving the given user.
func (ts *ApprovalTokenService) Mint(userID uuid.UUID) (string, error) {
	now := ts.now()
	claims := &ApprovalTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
			ID:        uuid.NewString(),
		},
		Purpose: approvalTokenPurpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign approval token")
	}

	return signed, nil
}

// Verify parses the token and returns the approved user's ID.
func (ts *ApprovalTokenService) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ApprovalTokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidApprovalToken
		}
		return ts.signingKey, nil
	}, jwt.WithIssuer(ts.issuer), jwt.WithTimeFunc(ts.now))

	if err != nil {
		return uuid.Nil, ErrInvalidApprovalToken
	}

	claims, ok := token.Claims.(*ApprovalTokenClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidApprovalToken
	}

	if claims.Purpose != approvalTokenPurpose {
		return uuid.Nil, ErrInvalidApprovalToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidApprovalToken
	}

	return userID, nil
}
