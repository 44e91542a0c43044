package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/store"
)

const maxIdentifierLength = 255

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Identifier string
	Secret     string
	Roles      []string
	Metadata   map[string]string
}

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureInvalidInput
	RegisterFailureSecretPolicy
	RegisterFailureRole
	RegisterFailureHash
	RegisterFailureDuplicate
	RegisterFailureCreate
)

// RegisterResult carries the created principal or failure metadata.
type RegisterResult struct {
	Failure   RegisterFailureKind
	Err       error
	Principal store.Principal
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	DefaultRole     string
	RoleExists      func(string) bool
	HashSecret      func(string) (string, error)
	IsPolicyError   func(error) bool
	NewID           func() string
	Now             func() time.Time
	CreatePrincipal func(context.Context, store.Principal) (store.Principal, error)
}

// RunRegister validates input, hashes the secret and creates an active principal.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || len(identifier) > maxIdentifierLength || identifier != req.Identifier {
		return RegisterResult{Failure: RegisterFailureInvalidInput}
	}
	if req.Secret == "" {
		return RegisterResult{Failure: RegisterFailureSecretPolicy}
	}

	roles := normalizeRoles(req.Roles)
	if len(roles) == 0 && deps.DefaultRole != "" {
		roles = []string{deps.DefaultRole}
	}
	if len(roles) == 0 {
		return RegisterResult{Failure: RegisterFailureRole}
	}
	for _, r := range roles {
		if !deps.RoleExists(r) {
			return RegisterResult{Failure: RegisterFailureRole}
		}
	}

	hash, err := deps.HashSecret(req.Secret)
	if err != nil {
		if deps.IsPolicyError != nil && deps.IsPolicyError(err) {
			return RegisterResult{Failure: RegisterFailureSecretPolicy, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	p, err := deps.CreatePrincipal(ctx, store.Principal{
		ID:         deps.NewID(),
		Identifier: identifier,
		SecretHash: hash,
		Status:     store.StatusActive,
		Roles:      roles,
		Metadata:   req.Metadata,
		CreatedAt:  deps.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdentifier) {
			return RegisterResult{Failure: RegisterFailureDuplicate, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}
	return RegisterResult{Principal: p}
}

func normalizeRoles(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
