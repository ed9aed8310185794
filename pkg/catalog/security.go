package catalog

import (
	"encoding/json"
	"sort"
)

// System roles. The admin role cannot be dropped; the user role is
// implicitly granted to every user and cannot be revoked.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// UserEntry records a user and their role memberships.
type UserEntry struct {
	Username       string   `json:"username"`
	CredentialHash string   `json:"credential_hash,omitempty"`
	Roles          []string `json:"roles"`
}

// HasRole reports whether the user holds the role.
func (u *UserEntry) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleEntry records a role and its permissions.
type RoleEntry struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	System      bool     `json:"system"`
}

// SecurityProvider manages users and roles with the system-role invariants.
type SecurityProvider struct {
	users map[string]*UserEntry
	roles map[string]*RoleEntry
}

// NewSecurityProvider returns a provider pre-seeded with the system roles.
func NewSecurityProvider() *SecurityProvider {
	p := &SecurityProvider{
		users: make(map[string]*UserEntry),
		roles: make(map[string]*RoleEntry),
	}
	p.roles[RoleAdmin] = &RoleEntry{
		Name:        RoleAdmin,
		Permissions: []string{"*"},
		System:      true,
	}
	p.roles[RoleUser] = &RoleEntry{
		Name:        RoleUser,
		Permissions: []string{"read", "write"},
		System:      true,
	}
	return p
}

func (p *SecurityProvider) Init(_ *ProviderStorage) error { return nil }

func (p *SecurityProvider) Execute(op Operation) (*Response, error) {
	switch op.Entity {
	case EntityUser:
		return p.executeUser(op)
	case EntityRole:
		return p.executeRole(op)
	}
	return nil, NewError(KindNotSupported, "security catalog does not manage %s entities", op.Entity)
}

func (p *SecurityProvider) ExecuteReadOnly(op Operation) (*Response, error) {
	if op.Kind == OpQuery {
		return p.Execute(op)
	}
	return readOnlyFallback(op)
}

func (p *SecurityProvider) executeUser(op Operation) (*Response, error) {
	switch op.Kind {
	case OpCreate:
		if op.Name == "" {
			return nil, NewError(KindInvalidParams, "username cannot be empty")
		}
		if _, exists := p.users[op.Name]; exists {
			return nil, NewError(KindAlreadyExists, "user %q already exists", op.Name)
		}
		entry := &UserEntry{Username: op.Name, Roles: []string{RoleUser}}
		if hash, ok := op.Params["credential_hash"].(string); ok {
			entry.CredentialHash = hash
		}
		if extra, ok := op.Params["roles"].([]any); ok {
			for _, r := range extra {
				if role, ok := r.(string); ok && !entry.HasRole(role) {
					if _, known := p.roles[role]; !known {
						return nil, NewError(KindNotFound, "role %q not found", role)
					}
					entry.Roles = append(entry.Roles, role)
				}
			}
		}
		p.users[op.Name] = entry
		return &Response{Data: map[string]any{"username": op.Name}}, nil

	case OpUpdate:
		user, exists := p.users[op.Name]
		if !exists {
			return nil, NewError(KindNotFound, "user %q not found", op.Name)
		}
		if add, ok := op.Params["add_roles"].([]any); ok {
			for _, r := range add {
				role, _ := r.(string)
				if role == "" {
					continue
				}
				if _, known := p.roles[role]; !known {
					return nil, NewError(KindNotFound, "role %q not found", role)
				}
				if !user.HasRole(role) {
					user.Roles = append(user.Roles, role)
				}
			}
		}
		if remove, ok := op.Params["remove_roles"].([]any); ok {
			for _, r := range remove {
				role, _ := r.(string)
				if role == RoleUser {
					return nil, NewError(KindPermissionDenied,
						"cannot revoke system role %q: it is required for all users", RoleUser)
				}
				if role == RoleAdmin && op.Name == RoleAdmin {
					return nil, NewError(KindPermissionDenied,
						"cannot revoke %q role from the admin user", RoleAdmin)
				}
				for i, have := range user.Roles {
					if have == role {
						user.Roles = append(user.Roles[:i], user.Roles[i+1:]...)
						break
					}
				}
			}
		}
		if hash, ok := op.Params["credential_hash"].(string); ok {
			user.CredentialHash = hash
		}
		return &Response{Data: map[string]any{"username": op.Name}}, nil

	case OpDrop:
		if _, exists := p.users[op.Name]; !exists {
			return nil, NewError(KindNotFound, "user %q not found", op.Name)
		}
		delete(p.users, op.Name)
		return &Response{Data: map[string]any{"username": op.Name}}, nil

	case OpQuery:
		return p.queryUser(op)
	}
	return nil, NewError(KindNotSupported, "unsupported user operation %s", op.Kind)
}

func (p *SecurityProvider) queryUser(op Operation) (*Response, error) {
	switch op.Name {
	case "list":
		names := make([]string, 0, len(p.users))
		for name := range p.users {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([]map[string]any, 0, len(names))
		for _, name := range names {
			u := p.users[name]
			rows = append(rows, map[string]any{
				"username": u.Username,
				"roles":    rolesToAny(u.Roles),
			})
		}
		return &Response{Rows: rows}, nil
	case "get":
		name, _ := op.Params["name"].(string)
		u, ok := p.users[name]
		if !ok {
			return nil, NewError(KindNotFound, "user %q not found", name)
		}
		return &Response{Data: map[string]any{
			"username":        u.Username,
			"roles":           rolesToAny(u.Roles),
			"credential_hash": u.CredentialHash,
		}}, nil
	}
	return nil, NewError(KindNotSupported, "unknown user query %q", op.Name)
}

func (p *SecurityProvider) executeRole(op Operation) (*Response, error) {
	switch op.Kind {
	case OpCreate:
		if op.Name == "" {
			return nil, NewError(KindInvalidParams, "role name cannot be empty")
		}
		if _, exists := p.roles[op.Name]; exists {
			return nil, NewError(KindAlreadyExists, "role %q already exists", op.Name)
		}
		entry := &RoleEntry{Name: op.Name}
		if perms, ok := op.Params["permissions"].([]any); ok {
			for _, perm := range perms {
				if s, ok := perm.(string); ok {
					entry.Permissions = append(entry.Permissions, s)
				}
			}
		}
		p.roles[op.Name] = entry
		return &Response{Data: map[string]any{"name": op.Name}}, nil

	case OpDrop:
		role, exists := p.roles[op.Name]
		if !exists {
			return nil, NewError(KindNotFound, "role %q not found", op.Name)
		}
		if role.System {
			return nil, NewError(KindPermissionDenied, "cannot drop system role %q", op.Name)
		}
		for _, u := range p.users {
			for i, have := range u.Roles {
				if have == op.Name {
					u.Roles = append(u.Roles[:i], u.Roles[i+1:]...)
					break
				}
			}
		}
		delete(p.roles, op.Name)
		return &Response{Data: map[string]any{"name": op.Name}}, nil

	case OpQuery:
		return p.queryRole(op)
	}
	return nil, NewError(KindNotSupported, "unsupported role operation %s", op.Kind)
}

func (p *SecurityProvider) queryRole(op Operation) (*Response, error) {
	switch op.Name {
	case "list":
		names := make([]string, 0, len(p.roles))
		for name := range p.roles {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([]map[string]any, 0, len(names))
		for _, name := range names {
			r := p.roles[name]
			rows = append(rows, map[string]any{
				"name":        r.Name,
				"permissions": rolesToAny(r.Permissions),
				"system":      r.System,
			})
		}
		return &Response{Rows: rows}, nil
	case "get":
		name, _ := op.Params["name"].(string)
		r, ok := p.roles[name]
		if !ok {
			return nil, NewError(KindNotFound, "role %q not found", name)
		}
		return &Response{Data: map[string]any{
			"name":        r.Name,
			"permissions": rolesToAny(r.Permissions),
			"system":      r.System,
		}}, nil
	}
	return nil, NewError(KindNotSupported, "unknown role query %q", op.Name)
}

func rolesToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// securitySnapshot is the Save/Load shape.
type securitySnapshot struct {
	Users map[string]*UserEntry `json:"users"`
	Roles map[string]*RoleEntry `json:"roles"`
}

func (p *SecurityProvider) Save() ([]byte, error) {
	return json.Marshal(securitySnapshot{Users: p.users, Roles: p.roles})
}

func (p *SecurityProvider) Load(data []byte) error {
	var snap securitySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return NewError(KindPersistence, "failed to decode security catalog: %v", err)
	}
	if snap.Users != nil {
		p.users = snap.Users
	}
	if snap.Roles != nil {
		p.roles = snap.Roles
	}
	// System roles survive snapshots that predate them.
	if _, ok := p.roles[RoleAdmin]; !ok {
		p.roles[RoleAdmin] = &RoleEntry{Name: RoleAdmin, Permissions: []string{"*"}, System: true}
	}
	if _, ok := p.roles[RoleUser]; !ok {
		p.roles[RoleUser] = &RoleEntry{Name: RoleUser, Permissions: []string{"read", "write"}, System: true}
	}
	return nil
}

func (p *SecurityProvider) Schema() Schema {
	return Schema{
		Name:       "security",
		Version:    "1.0",
		Entities:   []string{string(EntityUser), string(EntityRole)},
		Operations: p.SupportedOperations(),
	}
}

func (p *SecurityProvider) SupportedOperations() []string {
	return []string{
		"create:user", "update:user", "drop:user", "query:user",
		"create:role", "drop:role", "query:role",
	}
}

// User returns the user entry, or nil.
func (p *SecurityProvider) User(name string) *UserEntry { return p.users[name] }
