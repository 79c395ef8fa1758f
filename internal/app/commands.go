package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wishkro/wishkro-go/pkg/apiclient"
	"github.com/wishkro/wishkro-go/pkg/session"
)

const usageText = `Usage: wishkro <command> [flags]

Commands:
  login       -email -password        Sign in and persist the session
  register    -name -email -password [-phone] [-referral]
  verify-otp  -email -otp             Confirm the signup one-time code
  resend-otp  -email                  Request a fresh one-time code
  forgot      -email                  Start the password reset flow
  logout                              Sign out locally and server-side
  status                              Show the current session
  profile                             Fetch and print the profile
  update      [-name] [-email] [-phone] [-avatar file]
  refresh                             Re-sync the profile from the backend
  referrals                           List referred users and invite code
  nearby                              List businesses around you
  business    <id>                    Show one business record
`

// Run dispatches a CLI command. The session is hydrated before every command
// so each invocation picks up whatever the previous one persisted.
func (app *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("missing command")
	}

	sess := app.session
	sess.Hydrate(ctx)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return app.cmdLogin(ctx, rest)
	case "register":
		return app.cmdRegister(ctx, rest)
	case "verify-otp":
		return app.cmdVerifyOTP(ctx, rest)
	case "resend-otp":
		return app.cmdResendOTP(ctx, rest)
	case "forgot":
		return app.cmdForgot(ctx, rest)
	case "logout":
		sess.Logout(ctx)
		fmt.Println("signed out")
		return nil
	case "status":
		return app.cmdStatus()
	case "profile":
		return app.cmdProfile(ctx)
	case "update":
		return app.cmdUpdate(ctx, rest)
	case "refresh":
		if !sess.RefreshProfile(ctx) {
			return fmt.Errorf("profile refresh failed")
		}
		return printJSON(sess.User())
	case "referrals":
		return app.cmdReferrals(ctx)
	case "nearby":
		return app.cmdNearby(ctx)
	case "business":
		return app.cmdBusiness(ctx, rest)
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (app *Application) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("login requires -email and -password")
	}

	res, err := app.client.Login(ctx, *email, *password)
	if err != nil {
		return userError(err)
	}
	if res.Token == "" {
		return fmt.Errorf("login response carried no token")
	}

	app.session.Login(ctx, session.Credentials{Token: res.Token, User: res.User})
	fmt.Println("signed in")
	return nil
}

func (app *Application) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	phone := fs.String("phone", "", "phone number")
	referral := fs.String("referral", "", "invite code of the referring user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" || *password == "" {
		return fmt.Errorf("register requires -name, -email and -password")
	}

	fields := map[string]any{
		"name":     *name,
		"email":    *email,
		"password": *password,
	}
	if *phone != "" {
		fields["phone"] = *phone
	}
	if *referral != "" {
		fields["inviteReferral"] = *referral
	}

	res, err := app.client.Register(ctx, fields)
	if err != nil {
		return userError(err)
	}

	// Some backend builds issue a token straight away, others require OTP
	// verification first.
	if res.Token != "" {
		app.session.Login(ctx, session.Credentials{Token: res.Token, User: res.User})
		fmt.Println("registered and signed in")
		return nil
	}
	fmt.Println("registered; verify the one-time code sent to your email")
	return nil
}

func (app *Application) cmdVerifyOTP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-otp", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	otp := fs.String("otp", "", "one-time code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *otp == "" {
		return fmt.Errorf("verify-otp requires -email and -otp")
	}

	ok, err := app.client.VerifyOTP(ctx, *email, *otp)
	if err != nil {
		return userError(err)
	}
	if !ok {
		return fmt.Errorf("verification failed")
	}
	fmt.Println("verified")
	return nil
}

func (app *Application) cmdResendOTP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resend-otp", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("resend-otp requires -email")
	}

	if err := app.client.ResendOTP(ctx, *email); err != nil {
		return userError(err)
	}
	fmt.Println("code sent")
	return nil
}

func (app *Application) cmdForgot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("forgot requires -email")
	}

	if err := app.client.ForgotPassword(ctx, *email); err != nil {
		return userError(err)
	}
	fmt.Println("reset instructions sent")
	return nil
}

func (app *Application) cmdStatus() error {
	state := app.session.State()

	out := map[string]any{
		"loggedIn": state.LoggedIn(),
		"hydrated": state.Hydrated,
	}
	if state.LoggedIn() {
		out["tokenExpired"] = app.session.IsTokenExpired()
		if !state.LastRefresh.IsZero() {
			out["lastRefresh"] = state.LastRefresh
		}
		if state.User != nil {
			out["user"] = state.User
		}
	}
	return printJSON(out)
}

func (app *Application) cmdProfile(ctx context.Context) error {
	if !app.session.RefreshProfile(ctx) && app.session.User() == nil {
		return fmt.Errorf("no profile available; are you signed in?")
	}
	return printJSON(app.session.User())
}

func (app *Application) cmdUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	phone := fs.String("phone", "", "phone number")
	avatar := fs.String("avatar", "", "path to an avatar image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fields := map[string]string{}
	if *name != "" {
		fields["name"] = *name
	}
	if *email != "" {
		fields["email"] = *email
	}
	if *phone != "" {
		fields["phone"] = *phone
	}

	files := map[string]apiclient.FormFile{}
	if *avatar != "" {
		content, err := os.ReadFile(*avatar)
		if err != nil {
			return fmt.Errorf("read avatar: %w", err)
		}
		files["image"] = apiclient.FormFile{Name: filepath.Base(*avatar), Content: content}
	}

	if len(fields) == 0 && len(files) == 0 {
		return fmt.Errorf("update requires at least one field")
	}

	profile, err := app.client.UpdateProfile(ctx, fields, files)
	if err != nil {
		return userError(err)
	}
	// The backend returns the updated record; re-sync so the cached profile
	// matches what the server now holds.
	app.session.RefreshProfile(ctx)
	if profile == nil {
		profile = app.session.User()
	}
	return printJSON(profile)
}

func (app *Application) cmdReferrals(ctx context.Context) error {
	summary, err := app.client.Referrals(ctx, app.session.User())
	if err != nil {
		return userError(err)
	}
	return printJSON(map[string]any{
		"code":  summary.Code,
		"users": summary.Users,
	})
}

func (app *Application) cmdNearby(ctx context.Context) error {
	businesses, err := app.client.Nearby(ctx)
	if err != nil {
		return userError(err)
	}
	return printJSON(businesses)
}

func (app *Application) cmdBusiness(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("business requires exactly one id argument")
	}

	record, err := app.client.BusinessByID(ctx, args[0])
	if err != nil {
		return userError(err)
	}

	out := map[string]any{"business": record}
	if pin := apiclient.PinFromRecord(record); pin != "" {
		out["pincode"] = pin
	}
	return printJSON(out)
}

// userError prefers the screen-safe message the transport layer attaches.
func userError(err error) error {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.UserMessage != "" {
		return fmt.Errorf("%s", apiErr.UserMessage)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
