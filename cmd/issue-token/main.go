// Command issue-token mints a JWT pair for the call-control API.
//
// It reads JWT_* settings from the environment, the same way the API does:
//
//	JWT_SECRET=... issue-token -user ops-1 -role operator
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"voice-platform/internal/auth"
	"voice-platform/internal/config"
	"voice-platform/internal/rbac"
	"voice-platform/pkg/logger"
)

func main() {
	user := flag.String("user", "", "user id to embed in the token (required)")
	role := flag.String("role", rbac.RoleOperator, "role: admin, operator or viewer")
	flag.Parse()

	log := logger.New(os.Getenv("APP_ENV"))

	pair, err := issue(config.LoadAuth(), *user, *role, time.Now())
	if err != nil {
		log.Error("issue token failed", "err", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pair); err != nil {
		log.Error("write token failed", "err", err)
		os.Exit(1)
	}
}

func issue(cfg config.AuthConfig, user, role string, now time.Time) (auth.TokenPair, error) {
	if user == "" {
		return auth.TokenPair{}, errors.New("-user is required")
	}
	if !rbac.IsKnownRole(role) {
		return auth.TokenPair{}, fmt.Errorf("unknown role %q", role)
	}
	m, err := auth.NewManager(cfg)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return m.IssuePair(now, user, role)
}
