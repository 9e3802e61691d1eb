package utils

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the part of a Google ID token the login flow needs.
type GoogleIdentity struct {
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleVerifier checks a Google ID token issued for this application.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*GoogleIdentity, error)
}

type idTokenVerifier struct {
	audience string
}

// NewGoogleVerifier validates tokens against Google's published keys with clientID as audience.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &idTokenVerifier{audience: clientID}
}

func (v *idTokenVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	if v.audience == "" {
		return nil, errors.New("google client id is not configured")
	}
	payload, err := idtoken.Validate(ctx, token, v.audience)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}

	id := &GoogleIdentity{}
	id.Email, _ = payload.Claims["email"].(string)
	id.Name, _ = payload.Claims["name"].(string)
	switch verified := payload.Claims["email_verified"].(type) {
	case bool:
		id.EmailVerified = verified
	case string:
		id.EmailVerified = verified == "true"
	}
	if id.Email == "" {
		return nil, errors.New("google id token carries no email")
	}
	return id, nil
}
