package registration

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryAuthz, "Feature gate check failed").
		WithCode(errors.CodeForbidden)
}

// requireSignupGate consults the injected feature gate, if any, and falls
// back to the static configuration flag. The gate wins so operators can
// close signups at runtime without a redeploy.
func requireSignupGate(ctx context.Context, featureGate gate.FeatureGate, registrationOpen bool) error {
	if featureGate == nil {
		if !registrationOpen {
			return ErrRegistrationClosed
		}
		return nil
	}

	return guard.Require(ctx, featureGate, gate.FeatureUsersSignup,
		guard.WithDisabledError(ErrRegistrationClosed),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}
