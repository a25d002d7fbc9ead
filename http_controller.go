package registration

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/nyaruka/phonenumbers"
)

// RegisterRegistrationRoutes mounts the registration surface on a router.
func RegisterRegistrationRoutes[T any](app router.Router[T], opts ...RegistrationControllerOption) {

	controller := NewRegistrationController(opts...)

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(fmt.Sprintf("%s/:key", controller.Routes.Activate), controller.ActivateGet).
		SetName("activate.get")

	app.Get(controller.Routes.ResendActivation, controller.ResendActivationShow).
		SetName("resend-activation.get")
	app.Post(controller.Routes.ResendActivation, controller.ResendActivationPost).
		SetName("resend-activation.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Approve), controller.ApproveGet).
		SetName("approve.get")
}

type RegistrationControllerRoutes struct {
	Register         string
	Activate         string
	ResendActivation string
	Approve          string
}

type RegistrationControllerViews struct {
	Register         string
	Activate         string
	ResendActivation string
	ResendConfirm    string
	Approve          string
}

type RegistrationController struct {
	Debug        bool
	Logger       Logger
	Workflow     *Workflow
	Routes       *RegistrationControllerRoutes
	Views        *RegistrationControllerViews
	ErrorHandler router.ErrorHandler
	// IsAuthenticated lets the host tell the controller whether the
	// request carries a session. Defaults to anonymous.
	IsAuthenticated func(router.Context) bool
}

type RegistrationControllerOption func(*RegistrationController) *RegistrationController

func NewRegistrationController(opts ...RegistrationControllerOption) *RegistrationController {
	c := &RegistrationController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &RegistrationControllerRoutes{
			Register:         "/register",
			Activate:         "/activate",
			ResendActivation: "/resend-activation",
			Approve:          "/approve",
		},
		Views: &RegistrationControllerViews{
			Register:         "register",
			Activate:         "activate",
			ResendActivation: "resend_activation",
			ResendConfirm:    "resend_activation_sent",
			Approve:          "approve",
		},
		IsAuthenticated: func(router.Context) bool { return false },
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Workflow == nil {
		panic("Missing Workflow in registration controller...")
	}

	return c
}

// WithControllerWorkflow injects the workflow the controller drives.
func WithControllerWorkflow(w *Workflow) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Workflow = w
		return c
	}
}

// WithControllerLogger overrides the default logger.
func WithControllerLogger(logger Logger) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerAuthCheck sets the host's session probe.
func WithControllerAuthCheck(check func(router.Context) bool) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		if check != nil {
			c.IsAuthenticated = check
		}
		return c
	}
}

// WithControllerDebug enables request payload dumps.
func WithControllerDebug(debug bool) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Debug = debug
		return c
	}
}

func (a *RegistrationController) RegistrationShow(ctx router.Context) error {
	if terminal, err := a.Workflow.GateCheck(ctx.Context(), a.IsAuthenticated(ctx)); err != nil {
		return a.ErrorHandler(ctx, err)
	} else if terminal != nil {
		return ctx.Redirect(terminal.RedirectTo, router.StatusSeeOther)
	}

	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegistrationCreatePayload{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(0, 150)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *RegistrationController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("registration parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	// A password mismatch or any other field error re-renders the form
	// with nothing persisted and nothing sent.
	if err := payload.Validate(); err != nil {
		a.Logger.Error("registration validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= REGISTRATION ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	req := RegistrationRequest{
		Authenticated: a.IsAuthenticated(ctx),
		Steps: []StepData{{
			Step: IdentityStep,
			Values: map[string]any{
				"username": payload.Username,
				"email":    payload.Email,
				"phone":    payload.Phone,
				"password": payload.Password,
			},
		}},
	}

	res, err := a.Workflow.Run(ctx.Context(), req)
	if err != nil {
		a.Logger.Error("registration failed: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error creating account",
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	if res.State == StateDisallowed {
		return ctx.Redirect(res.RedirectTo, router.StatusSeeOther)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message":     "Account created",
		"registration_email": res.Email,
	}).Redirect(res.RedirectTo, fiber.StatusSeeOther)
}

func (a *RegistrationController) ActivateGet(ctx router.Context) error {
	key := ctx.Param("key", "")

	res, err := a.Workflow.Activate(ctx.Context(), key)
	if err != nil {
		if !IsActivationFailure(err) &&
			!errors.Is(err, ErrApprovalPending) &&
			!errors.Is(err, ErrApprovalRejected) {
			// Persistence and configuration failures are server errors,
			// not a property of the key.
			return a.ErrorHandler(ctx, err)
		}
		// Unknown, expired, and already-consumed keys all land on the
		// same page; only the log knows which it was.
		a.Logger.Info("activation failed: %s", ActivationFailureCode(err))
		return ctx.Render(a.Views.Activate, router.ViewContext{
			"activated": false,
		})
	}

	return ctx.Redirect(res.RedirectTo, router.StatusSeeOther)
}

func (a *RegistrationController) ResendActivationShow(ctx router.Context) error {
	return ctx.Render(a.Views.ResendActivation, router.ViewContext{
		"errors": nil,
		"record": ResendActivationPayload{},
	})
}

// ResendActivationPayload holds the resend form values
type ResendActivationPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ResendActivationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *RegistrationController) ResendActivationPost(ctx router.Context) error {
	payload := new(ResendActivationPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.ResendActivation, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Workflow.ResendActivation(ctx.Context(), payload.Email); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	// Same confirmation whatever the email matched, so the endpoint
	// cannot be used to probe for accounts.
	return ctx.Render(a.Views.ResendConfirm, router.ViewContext{
		"email": payload.Email,
	})
}

func (a *RegistrationController) ApproveGet(ctx router.Context) error {
	token := ctx.Param("token", "")

	res, err := a.Workflow.Approve(ctx.Context(), token)
	if err != nil {
		// A reclaimed account or a consumed key still collapses into the
		// generic page; infrastructure failures do not.
		if !IsActivationFailure(err) &&
			!errors.Is(err, ErrInvalidApprovalToken) &&
			!errors.Is(err, ErrApprovalRejected) {
			return a.ErrorHandler(ctx, err)
		}
		a.Logger.Info("approval failed: %v", err)
		return ctx.Render(a.Views.Approve, router.ViewContext{
			"approved": false,
		})
	}

	return ctx.Redirect(res.RedirectTo, router.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber accepts an empty value or a parseable, valid
// number.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return errors.New("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors for views.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, ferr := range fieldErrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
