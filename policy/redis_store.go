package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

/* ==================================================================== */
/* ======================= REDIS POLICY STORE ========================= */
/* ==================================================================== */

// Key layout, all under "<prefix>:<domain>:":
//
//	roles                 SET   role names
//	role:<name>           HASH  id, name, description
//	perms                 SET   permission ids
//	perm:<id>             HASH  id, resource, action, description
//	permidx               HASH  "<resource>\x1f<action>" -> id
//	g:<subject>           SET   role names bound to subject
//	gsubs                 SET   subjects with at least one role binding
//	rp:<role>             SET   permission ids granted to role
//	rproles               SET   roles with at least one permission
//	direct:<subject>      SET   permission ids granted directly
//	directs               SET   subjects with at least one direct grant
//
// The reverse registries (gsubs, rproles, directs) exist so cascading
// deletes can fan out server-side without a SCAN.

const permFieldSep = "\x1f"

// RedisStore implements Store on top of Redis. All cascading mutations run
// as Lua scripts so concurrent readers never observe a half-applied delete.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore constructs a policy store with the given key prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "apol"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) base(domain string) string {
	return s.prefix + ":" + domain + ":"
}

func permField(resource, action string) string {
	return resource + permFieldSep + action
}

func validDomain(domain string) bool {
	return strings.TrimSpace(domain) != "" && !strings.ContainsAny(domain, " :\x1f")
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

/* ============================ LUA SCRIPTS =========================== */

var createRoleScript = redis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[2], "id", ARGV[2], "name", ARGV[1], "description", ARGV[3])
return 1
`)

// deleteRoleScript cascades in one step: the role record, its permission
// grants, and every g edge pointing at it go together. Empty edge sets are
// pruned from the gsubs registry.
// KEYS: roles, role:<name>, rp:<name>, gsubs, rproles
// ARGV: name, g-edge key prefix
var deleteRoleScript = redis.NewScript(`
if redis.call("SREM", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("DEL", KEYS[2])
redis.call("DEL", KEYS[3])
redis.call("SREM", KEYS[5], ARGV[1])
local subs = redis.call("SMEMBERS", KEYS[4])
for _, sub in ipairs(subs) do
  local ek = ARGV[2] .. sub
  redis.call("SREM", ek, ARGV[1])
  if redis.call("SCARD", ek) == 0 then
    redis.call("SREM", KEYS[4], sub)
  end
end
local own = ARGV[2] .. ARGV[1]
if redis.call("EXISTS", own) == 1 then
  redis.call("DEL", own)
  redis.call("SREM", KEYS[4], ARGV[1])
end
return 1
`)

// KEYS: perms, permidx, perm:<id>
// ARGV: field, id, resource, action, description
var createPermScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[2], ARGV[1], ARGV[2]) == 0 then
  return 0
end
redis.call("SADD", KEYS[1], ARGV[2])
redis.call("HSET", KEYS[3], "id", ARGV[2], "resource", ARGV[3], "action", ARGV[4], "description", ARGV[5])
return 1
`)

// KEYS: perms, permidx, rproles, directs
// ARGV: field, rp prefix, direct prefix, perm record prefix
var deletePermScript = redis.NewScript(`
local id = redis.call("HGET", KEYS[2], ARGV[1])
if not id then
  return 0
end
redis.call("HDEL", KEYS[2], ARGV[1])
redis.call("SREM", KEYS[1], id)
redis.call("DEL", ARGV[4] .. id)
for _, role in ipairs(redis.call("SMEMBERS", KEYS[3])) do
  local rk = ARGV[2] .. role
  redis.call("SREM", rk, id)
  if redis.call("SCARD", rk) == 0 then
    redis.call("SREM", KEYS[3], role)
  end
end
for _, sub in ipairs(redis.call("SMEMBERS", KEYS[4])) do
  local dk = ARGV[3] .. sub
  redis.call("SREM", dk, id)
  if redis.call("SCARD", dk) == 0 then
    redis.call("SREM", KEYS[4], sub)
  end
end
return 1
`)

// KEYS: roles, g:<subject>, gsubs
// ARGV: role, subject
var bindRoleScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 0 then
  return -1
end
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[2])
return 1
`)

// KEYS: g:<subject>, gsubs
// ARGV: role, subject
var unbindRoleScript = redis.NewScript(`
local removed = redis.call("SREM", KEYS[1], ARGV[1])
if redis.call("SCARD", KEYS[1]) == 0 then
  redis.call("SREM", KEYS[2], ARGV[2])
end
return removed
`)

// KEYS: roles, permidx, rp:<role>, rproles
// ARGV: role, field
var bindPermScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 0 then
  return -1
end
local id = redis.call("HGET", KEYS[2], ARGV[2])
if not id then
  return -2
end
redis.call("SADD", KEYS[3], id)
redis.call("SADD", KEYS[4], ARGV[1])
return 1
`)

// KEYS: permidx, rp:<role>, rproles
// ARGV: field, role
var unbindPermScript = redis.NewScript(`
local id = redis.call("HGET", KEYS[1], ARGV[1])
if not id then
  return -2
end
local removed = redis.call("SREM", KEYS[2], id)
if redis.call("SCARD", KEYS[2]) == 0 then
  redis.call("SREM", KEYS[3], ARGV[2])
end
return removed
`)

// KEYS: permidx, direct:<subject>, directs
// ARGV: field, subject
var bindDirectScript = redis.NewScript(`
local id = redis.call("HGET", KEYS[1], ARGV[1])
if not id then
  return -2
end
redis.call("SADD", KEYS[2], id)
redis.call("SADD", KEYS[3], ARGV[2])
return 1
`)

// KEYS: permidx, direct:<subject>, directs
// ARGV: field, subject
var unbindDirectScript = redis.NewScript(`
local id = redis.call("HGET", KEYS[1], ARGV[1])
if not id then
  return -2
end
local removed = redis.call("SREM", KEYS[2], id)
if redis.call("SCARD", KEYS[2]) == 0 then
  redis.call("SREM", KEYS[3], ARGV[2])
end
return removed
`)

/* ============================== ROLES =============================== */

// CreateRole registers a role. The ID is assigned here when empty.
func (s *RedisStore) CreateRole(ctx context.Context, domain string, role Role) (Role, error) {
	if !validDomain(domain) {
		return Role{}, ErrInvalidDomain
	}
	if strings.TrimSpace(role.Name) == "" {
		return Role{}, fmt.Errorf("%w: empty role name", ErrRoleNotFound)
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	b := s.base(domain)
	res, err := createRoleScript.Run(ctx, s.redis,
		[]string{b + "roles", b + "role:" + role.Name},
		role.Name, role.ID, role.Description,
	).Int()
	if err != nil {
		return Role{}, storeErr(err)
	}
	if res == 0 {
		return Role{}, ErrRoleExists
	}
	return role, nil
}

func (s *RedisStore) GetRole(ctx context.Context, domain, name string) (Role, error) {
	if !validDomain(domain) {
		return Role{}, ErrInvalidDomain
	}
	b := s.base(domain)
	vals, err := s.redis.HGetAll(ctx, b+"role:"+name).Result()
	if err != nil {
		return Role{}, storeErr(err)
	}
	if len(vals) == 0 {
		return Role{}, ErrRoleNotFound
	}
	return Role{ID: vals["id"], Name: vals["name"], Description: vals["description"]}, nil
}

func (s *RedisStore) ListRoles(ctx context.Context, domain string) ([]Role, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	b := s.base(domain)
	names, err := s.redis.SMembers(ctx, b+"roles").Result()
	if err != nil {
		return nil, storeErr(err)
	}
	roles := make([]Role, 0, len(names))
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(names))
	for i, name := range names {
		cmds[i] = pipe.HGetAll(ctx, b+"role:"+name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr(err)
	}
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		roles = append(roles, Role{ID: vals["id"], Name: vals["name"], Description: vals["description"]})
	}
	return roles, nil
}

func (s *RedisStore) DeleteRole(ctx context.Context, domain, name string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	res, err := deleteRoleScript.Run(ctx, s.redis,
		[]string{b + "roles", b + "role:" + name, b + "rp:" + name, b + "gsubs", b + "rproles"},
		name, b+"g:",
	).Int()
	if err != nil {
		return storeErr(err)
	}
	if res == 0 {
		return ErrRoleNotFound
	}
	return nil
}

/* =========================== PERMISSIONS ============================ */

// CreatePermission registers a (resource, action) capability. The ID is
// assigned here when empty.
func (s *RedisStore) CreatePermission(ctx context.Context, domain string, perm Permission) (Permission, error) {
	if !validDomain(domain) {
		return Permission{}, ErrInvalidDomain
	}
	if strings.TrimSpace(perm.Resource) == "" || strings.TrimSpace(perm.Action) == "" {
		return Permission{}, fmt.Errorf("%w: empty resource or action", ErrPermissionNotFound)
	}
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	b := s.base(domain)
	res, err := createPermScript.Run(ctx, s.redis,
		[]string{b + "perms", b + "permidx", b + "perm:" + perm.ID},
		permField(perm.Resource, perm.Action), perm.ID, perm.Resource, perm.Action, perm.Description,
	).Int()
	if err != nil {
		return Permission{}, storeErr(err)
	}
	if res == 0 {
		return Permission{}, ErrPermissionExists
	}
	return perm, nil
}

func (s *RedisStore) ListPermissions(ctx context.Context, domain string) ([]Permission, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	b := s.base(domain)
	ids, err := s.redis.SMembers(ctx, b+"perms").Result()
	if err != nil {
		return nil, storeErr(err)
	}
	return s.permsByID(ctx, domain, ids)
}

func (s *RedisStore) permsByID(ctx context.Context, domain string, ids []string) ([]Permission, error) {
	b := s.base(domain)
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, b+"perm:"+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr(err)
	}
	perms := make([]Permission, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		perms = append(perms, Permission{
			ID:          vals["id"],
			Resource:    vals["resource"],
			Action:      vals["action"],
			Description: vals["description"],
		})
	}
	return perms, nil
}

func (s *RedisStore) DeletePermission(ctx context.Context, domain, resource, action string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	res, err := deletePermScript.Run(ctx, s.redis,
		[]string{b + "perms", b + "permidx", b + "rproles", b + "directs"},
		permField(resource, action), b+"rp:", b+"direct:", b+"perm:",
	).Int()
	if err != nil {
		return storeErr(err)
	}
	if res == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

/* ============================= BINDINGS ============================= */

func (s *RedisStore) BindRole(ctx context.Context, domain, subject, role string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	res, err := bindRoleScript.Run(ctx, s.redis,
		[]string{b + "roles", b + "g:" + subject, b + "gsubs"},
		role, subject,
	).Int()
	if err != nil {
		return storeErr(err)
	}
	if res == -1 {
		return ErrRoleNotFound
	}
	return nil
}

// UnbindRole is idempotent: removing an absent binding is not an error.
func (s *RedisStore) UnbindRole(ctx context.Context, domain, subject, role string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	_, err := unbindRoleScript.Run(ctx, s.redis,
		[]string{b + "g:" + subject, b + "gsubs"},
		role, subject,
	).Int()
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *RedisStore) BindPermission(ctx context.Context, domain, role, resource, action string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	res, err := bindPermScript.Run(ctx, s.redis,
		[]string{b + "roles", b + "permidx", b + "rp:" + role, b + "rproles"},
		role, permField(resource, action),
	).Int()
	if err != nil {
		return storeErr(err)
	}
	switch res {
	case -1:
		return ErrRoleNotFound
	case -2:
		return ErrPermissionNotFound
	}
	return nil
}

func (s *RedisStore) UnbindPermission(ctx context.Context, domain, role, resource, action string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	res, err := unbindPermScript.Run(ctx, s.redis,
		[]string{b + "permidx", b + "rp:" + role, b + "rproles"},
		permField(resource, action), role,
	).Int()
	if err != nil {
		return storeErr(err)
	}
	if res == -2 {
		return ErrPermissionNotFound
	}
	return nil
}

func (s *RedisStore) BindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	res, err := bindDirectScript.Run(ctx, s.redis,
		[]string{b + "permidx", b + "direct:" + subject, b + "directs"},
		permField(resource, action), subject,
	).Int()
	if err != nil {
		return storeErr(err)
	}
	if res == -2 {
		return ErrPermissionNotFound
	}
	return nil
}

func (s *RedisStore) UnbindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	b := s.base(domain)
	res, err := unbindDirectScript.Run(ctx, s.redis,
		[]string{b + "permidx", b + "direct:" + subject, b + "directs"},
		permField(resource, action), subject,
	).Int()
	if err != nil {
		return storeErr(err)
	}
	if res == -2 {
		return ErrPermissionNotFound
	}
	return nil
}

/* ============================== READS =============================== */

func (s *RedisStore) RolesForSubject(ctx context.Context, domain, subject string) ([]string, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	roles, err := s.redis.SMembers(ctx, s.base(domain)+"g:"+subject).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	return roles, nil
}

// SubjectsForRole is the reverse of RolesForSubject: every subject with a
// direct binding to the role. It walks the binding registry rather than
// scanning the keyspace.
func (s *RedisStore) SubjectsForRole(ctx context.Context, domain, role string) ([]string, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	b := s.base(domain)
	subjects, err := s.redis.SMembers(ctx, b+"gsubs").Result()
	if err != nil {
		return nil, storeErr(err)
	}
	if len(subjects) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	checks := make([]*redis.BoolCmd, len(subjects))
	for i, subject := range subjects {
		checks[i] = pipe.SIsMember(ctx, b+"g:"+subject, role)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr(err)
	}

	var bound []string
	for i, cmd := range checks {
		if cmd.Val() {
			bound = append(bound, subjects[i])
		}
	}
	sort.Strings(bound)
	return bound, nil
}

func (s *RedisStore) PermissionsForRole(ctx context.Context, domain, role string) ([]Permission, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	ids, err := s.redis.SMembers(ctx, s.base(domain)+"rp:"+role).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	return s.permsByID(ctx, domain, ids)
}

// LoadDomain reads everything stored for a domain. It is not a point-in-time
// snapshot across keys, but writers serialize through the enforcer, so a
// reload that follows a mutation always observes it.
func (s *RedisStore) LoadDomain(ctx context.Context, domain string) (*DomainPolicy, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	b := s.base(domain)

	roles, err := s.ListRoles(ctx, domain)
	if err != nil {
		return nil, err
	}
	perms, err := s.ListPermissions(ctx, domain)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}

	edges, err := s.memberSets(ctx, b+"gsubs", b+"g:")
	if err != nil {
		return nil, err
	}
	rolePermIDs, err := s.memberSets(ctx, b+"rproles", b+"rp:")
	if err != nil {
		return nil, err
	}
	directIDs, err := s.memberSets(ctx, b+"directs", b+"direct:")
	if err != nil {
		return nil, err
	}

	pol := &DomainPolicy{
		Domain:          domain,
		Roles:           roles,
		Permissions:     perms,
		RoleEdges:       edges,
		RolePermissions: make(map[string][]Permission, len(rolePermIDs)),
		DirectGrants:    make(map[string][]Permission, len(directIDs)),
	}
	for role, ids := range rolePermIDs {
		pol.RolePermissions[role] = resolvePerms(byID, ids)
	}
	for sub, ids := range directIDs {
		pol.DirectGrants[sub] = resolvePerms(byID, ids)
	}
	return pol, nil
}

// memberSets expands a registry set into member -> set contents using one
// pipeline round trip.
func (s *RedisStore) memberSets(ctx context.Context, registry, prefix string) (map[string][]string, error) {
	members, err := s.redis.SMembers(ctx, registry).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.SMembers(ctx, prefix+m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr(err)
	}
	out := make(map[string][]string, len(members))
	for i, m := range members {
		vals := cmds[i].Val()
		if len(vals) == 0 {
			continue
		}
		out[m] = vals
	}
	return out, nil
}

func resolvePerms(byID map[string]Permission, ids []string) []Permission {
	out := make([]Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Ping reports whether the backing Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}
