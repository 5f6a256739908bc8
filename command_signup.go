package authgate

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

type SignUpMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

func (e SignUpMessage) Type() string { return "auth.signup" }

// SignUpHandler drives registration through the Manager so the taxonomy and
// activity semantics match the interactive path.
type SignUpHandler struct {
	manager *Manager
}

func NewSignUpHandler(manager *Manager) *SignUpHandler {
	return &SignUpHandler{manager: manager}
}

func (h *SignUpHandler) Execute(ctx context.Context, event SignUpMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign up",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignUpHandler) execute(ctx context.Context, event SignUpMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	metadata := map[string]any{}

	if event.Phone != "" {
		normalized, err := normalizePhone(event.Phone)
		if err != nil {
			return err
		}
		metadata["phone"] = normalized
	}

	return h.manager.SignUpWithMetadata(ctx, event.Email, event.Password, event.FullName, metadata)
}

// normalizePhone requires E.164 input and returns the canonical form.
func normalizePhone(raw string) (string, error) {
	if !strings.HasPrefix(raw, "+") {
		return "", goerrors.New("phone number must include a country code", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE").
			WithCode(goerrors.CodeBadRequest)
	}

	num, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE").
			WithCode(goerrors.CodeBadRequest)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
