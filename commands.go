package registration

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Command messages wrap the registration operations for hosts that drive
// them through a message dispatcher instead of the HTTP controller.

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(r *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "registration.user.register" }

type RegisterUserResponse struct {
	UserID       string   `json:"user_id" doc:"Identifier of the new account."`
	SessionToken string   `json:"session_token,omitempty" doc:"Session token when the policy signs the user in."`
	Errors       []string `json:"errors" doc:"Error messages."`
}

type RegisterUserHandler struct {
	policy Policy
}

func NewRegisterUserHandler(policy Policy) *RegisterUserHandler {
	return &RegisterUserHandler{policy: policy}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	res, err := h.policy.Register(ctx, RegistrationData{
		Username:  event.Username,
		Email:     event.Email,
		Phone:     event.Phone,
		Password:  event.Password,
		UseHashid: event.UseHashid,
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{
			UserID:       res.User.ID.String(),
			SessionToken: res.SessionToken,
		})
	}

	return nil
}

type ActivateAccountMessage struct {
	Key        string `json:"key" doc:"Activation key from the emailed link."`
	OnResponse func(a *ActivateAccountResponse)
}

func (e ActivateAccountMessage) Type() string { return "registration.account.activate" }

type ActivateAccountResponse struct {
	Found     bool     `json:"found" example:"true" doc:"Has the key been found?"`
	Expired   bool     `json:"expired" example:"false" doc:"Has the activation window elapsed?"`
	Activated bool     `json:"activated" example:"true" doc:"Is the account active now?"`
	UserID    string   `json:"user_id,omitempty" doc:"Identifier of the activated account."`
	Errors    []string `json:"errors" doc:"Error messages."`
}

type ActivateAccountHandler struct {
	store *ProfileStore
}

func NewActivateAccountHandler(store *ProfileStore) *ActivateAccountHandler {
	return &ActivateAccountHandler{store: store}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	resp := &ActivateAccountResponse{Found: true}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.store.Activate(ctx, event.Key)
	switch {
	case err == nil:
		resp.Activated = true
		resp.UserID = user.ID.String()
	case errors.Is(err, ErrKeyNotFound):
		// an unknown key is part of the expected flow, not an
		// application error
		resp.Found = false
	case errors.Is(err, ErrActivationExpired):
		resp.Expired = true
	case IsActivationFailure(err) || errors.Is(err, ErrApprovalPending) || errors.Is(err, ErrApprovalRejected):
		resp.Errors = append(resp.Errors, ActivationFailureCode(err))
	default:
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute account activation")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

type ResendActivationMessage struct {
	Email string `json:"email" doc:"Address the activation key should be resent to."`
}

func (e ResendActivationMessage) Type() string { return "registration.account.resend_activation" }

type ResendActivationHandler struct {
	store *ProfileStore
}

func NewResendActivationHandler(store *ProfileStore) *ResendActivationHandler {
	return &ResendActivationHandler{store: store}
}

func (h *ResendActivationHandler) Execute(ctx context.Context, event ResendActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation resend")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.store.ResendActivation(ctx, event.Email); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resend activation email")
	}

	return nil
}
