package apiclient

import (
	"context"
)

// API paths. The referrals spelling is the backend's, not ours.
const (
	pathLogin      = "/api/user/login"
	pathRegister   = "/api/user/register"
	pathVerifyOTP  = "/api/user/verify-otp"
	pathResendOTP  = "/api/user/resend-otp"
	pathForget     = "/api/user/forget"
	pathLogout     = "/api/logout"
	pathProfile    = "/api/user/fetch"
	pathUpdateUser = "/api/user/updateuser"
	pathReferrals  = "/api/user/refferals"
	pathNearby     = "/api/user/nearby"
	pathBusiness   = "/api/business/"
)

// LoginResult carries whatever the backend handed out after a successful
// sign-in: the bearer token and profile extracted tolerantly, plus the raw
// payload for callers that need fields we do not model.
type LoginResult struct {
	Token string
	User  map[string]any
	Raw   map[string]any
}

// Login exchanges email/password credentials for a bearer token. It does not
// touch the client's attached credential; installing the token is the
// session manager's job.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req := map[string]string{"email": email, "password": password}

	var payload map[string]any
	if err := c.postJSON(ctx, pathLogin, req, &payload); err != nil {
		return nil, err
	}

	return &LoginResult{
		Token: TokenFromPayload(payload),
		User:  ProfileFromPayload(payload, c.profileKeys),
		Raw:   payload,
	}, nil
}

// Register creates an account. The field set is whatever the signup form
// collects; the backend validates it.
func (c *Client) Register(ctx context.Context, fields map[string]any) (*LoginResult, error) {
	var payload map[string]any
	if err := c.postJSON(ctx, pathRegister, fields, &payload); err != nil {
		return nil, err
	}

	return &LoginResult{
		Token: TokenFromPayload(payload),
		User:  ProfileFromPayload(payload, c.profileKeys),
		Raw:   payload,
	}, nil
}

// VerifyOTP submits the one-time code the backend sent during signup.
// Verification success is signalled by either a success or verified flag.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (bool, error) {
	req := map[string]string{"email": email, "otp": otp}

	var payload struct {
		Success  bool `json:"success"`
		Verified bool `json:"verified"`
	}
	if err := c.postJSON(ctx, pathVerifyOTP, req, &payload); err != nil {
		return false, err
	}

	return payload.Success || payload.Verified, nil
}

// ResendOTP asks the backend to send a fresh one-time code.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	return c.postJSON(ctx, pathResendOTP, map[string]string{"email": email}, nil)
}

// ForgotPassword kicks off the password reset flow for the given email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.postJSON(ctx, pathForget, map[string]string{"email": email}, nil)
}

// Logout asks the backend to invalidate the current session. Callers that
// must succeed locally regardless of the network (the session manager)
// ignore the result.
func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, pathLogout, nil, nil)
}
