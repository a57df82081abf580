// ledgerctl drives the authenticated client from the terminal: it keeps a
// durable session in a local SQLite state file, so consecutive invocations
// reuse and refresh the same tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"go-ledger-client/internal/config"
	"go-ledger-client/internal/kvstore"
	"go-ledger-client/internal/logger"
	"go-ledger-client/internal/pipeline"
	"go-ledger-client/internal/session"
)

const usage = `usage: ledgerctl <command> [args]

commands:
  login <username>            authenticate and store the session
  logout                      end the session
  whoami                      show the cached user
  refresh-profile             re-fetch the profile from the server
  can <permission>            check a permission against the current role
  change-password             change the account password
  events [n]                  show the most recent security events
  get <path>                  issue an authenticated GET and print the body
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(filepath.Dir(cfg.StateDBPath), 0o755); err != nil {
		fatal(err)
	}
	kv, err := kvstore.NewSQLite(cfg.StateDBPath)
	if err != nil {
		fatal(err)
	}
	defer kv.Close()

	perms := session.DefaultPermissions()
	if cfg.PermissionsFile != "" {
		if perms, err = session.LoadPermissions(cfg.PermissionsFile); err != nil {
			fatal(err)
		}
	}

	facade := session.New(session.Config{
		BaseURL:    cfg.APIBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		KV:         kv,
		Policy: pipeline.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
			Retryable:   pipeline.DefaultRetryPolicy().Retryable,
		},
		UserAgent:      cfg.UserAgent,
		SessionTimeout: cfg.SessionTimeout,
		WarningLead:    cfg.SessionWarningLead,
		Permissions:    perms,
		Logger:         log,
		Notify:         func(msg string) { fmt.Fprintln(os.Stderr, msg) },
		OnForcedLogout: func(reason string) { fmt.Fprintln(os.Stderr, "signed out:", reason) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, facade, os.Args[1], os.Args[2:]); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, facade *session.Facade, command string, args []string) error {
	switch command {
	case "login":
		if len(args) != 1 {
			return fmt.Errorf("usage: ledgerctl login <username>")
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		user, err := facade.Login(ctx, args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", user.FullName(), user.RoleName)
		return nil

	case "logout":
		facade.Logout(ctx, "user action")
		fmt.Println("signed out")
		return nil

	case "whoami":
		user, ok := facade.CurrentUser()
		if !ok {
			return fmt.Errorf("not signed in")
		}
		return printJSON(user)

	case "refresh-profile":
		if err := facade.RefreshUserData(ctx); err != nil {
			return err
		}
		user, _ := facade.CurrentUser()
		return printJSON(user)

	case "can":
		if len(args) != 1 {
			return fmt.Errorf("usage: ledgerctl can <permission>")
		}
		if facade.HasPermission(args[0]) {
			fmt.Println("allowed")
		} else {
			fmt.Println("denied")
		}
		return nil

	case "change-password":
		current, err := readPassword("Current password: ")
		if err != nil {
			return err
		}
		next, err := readPassword("New password: ")
		if err != nil {
			return err
		}
		if err := facade.ChangePassword(ctx, current, next); err != nil {
			return err
		}
		fmt.Println("password changed")
		return nil

	case "events":
		limit := 20
		if len(args) == 1 {
			if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil {
				return fmt.Errorf("usage: ledgerctl events [n]")
			}
		}
		return printJSON(facade.SecurityEvents(limit))

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: ledgerctl get <path>")
		}
		path := args[0]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		resp, err := facade.Pipeline().Do(ctx, pipeline.Request{
			Method:     http.MethodGet,
			Path:       path,
			Idempotent: true,
		})
		if err != nil {
			return err
		}
		var pretty any
		if json.Unmarshal(resp.Body, &pretty) == nil {
			return printJSON(pretty)
		}
		fmt.Println(string(resp.Body))
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
