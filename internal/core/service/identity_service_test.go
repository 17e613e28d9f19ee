package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

var ctx = context.Background()

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

// General registration picks from the whole closed role set; only the
// fixed-role admin operations sit behind the SuperAdmin gate.
func TestIdentityService_Register_AllowsSuperAdminRole(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Register(ctx, ports.RegisterInput{
		Email:    "root@example.com",
		Password: strongPassword,
		Roles:    []string{domain.RoleSuperAdmin},
	})
	if err != nil || !res.Success {
		t.Fatalf("Register failed: %v %+v", err, res)
	}

	account, err := f.accounts.FindByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("account not persisted: %v", err)
	}
	if len(account.Roles) != 1 || account.Roles[0] != domain.RoleSuperAdmin {
		t.Fatalf("expected roles [SuperAdmin], got %v", account.Roles)
	}
}

func TestIdentityService_Register_Success(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Register(ctx, ports.RegisterInput{
		Email:    "alice@example.com",
		FullName: "Alice",
		Password: strongPassword,
		Roles:    []string{domain.RoleAdmin, domain.RoleUser, domain.RoleAdmin},
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if !res.Success || res.Message != msgRegistered {
		t.Fatalf("unexpected result: %+v", res)
	}

	account, err := f.accounts.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("account not persisted: %v", err)
	}
	if account.ID != res.UserID {
		t.Fatalf("expected user id %s, got %s", account.ID, res.UserID)
	}
	if account.Username != "alice@example.com" {
		t.Fatalf("username should default to email, got %q", account.Username)
	}
	if account.PasswordHash == strongPassword {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(strongPassword)); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	roles := append([]string(nil), account.Roles...)
	sort.Strings(roles)
	if strings.Join(roles, ",") != "Admin,User" {
		t.Fatalf("unexpected roles: %v", account.Roles)
	}
	if f.roles.creates != 2 {
		t.Fatalf("expected 2 role records, got %d", f.roles.creates)
	}
}

func TestIdentityService_Register_DuplicateEmail(t *testing.T) {
	f := newFixture()
	f.mustRegister("bob@example.com", strongPassword, domain.RoleUser)

	res, err := f.svc.Register(ctx, ports.RegisterInput{
		Email:    "BOB@example.com",
		Password: strongPassword,
		Roles:    []string{domain.RoleUser},
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Success || res.Reason != ports.FailureConflict {
		t.Fatalf("expected conflict, got %+v", res)
	}
	if res.Message != "User already exists" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if len(f.accounts.byID) != 1 {
		t.Fatalf("expected exactly one account, got %d", len(f.accounts.byID))
	}
}

func TestIdentityService_Register_InvalidRoleLeavesNoAccount(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Register(ctx, ports.RegisterInput{
		Email:    "carol@example.com",
		Password: strongPassword,
		Roles:    []string{domain.RoleUser, "Owner"},
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Success || res.Reason != ports.FailureInvalidRole {
		t.Fatalf("expected invalid role failure, got %+v", res)
	}
	if res.Message != "Invalid role: Owner" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if _, err := f.accounts.FindByEmail(ctx, "carol@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected no account, got err=%v", err)
	}
	if f.roles.creates != 0 {
		t.Fatalf("expected no role records, got %d", f.roles.creates)
	}
}

func TestIdentityService_Register_RoleNamesAreCaseSensitive(t *testing.T) {
	f := newFixture()

	res, _ := f.svc.Register(ctx, ports.RegisterInput{
		Email:    "dan@example.com",
		Password: strongPassword,
		Roles:    []string{"admin"},
	})
	if res.Success || res.Reason != ports.FailureInvalidRole {
		t.Fatalf("expected lowercase role to be rejected, got %+v", res)
	}
}

func TestIdentityService_Register_RollsBackOnRoleAssignFailure(t *testing.T) {
	f := newFixture()
	f.roles.assignErr = errors.New("mongo down")

	_, err := f.svc.Register(ctx, ports.RegisterInput{
		Email:    "erin@example.com",
		Password: strongPassword,
		Roles:    []string{domain.RoleUser},
	})
	if err == nil {
		t.Fatalf("expected infrastructure error")
	}
	if len(f.accounts.byID) != 0 {
		t.Fatalf("expected partially created account to be deleted")
	}
}

func TestIdentityService_Register_StoreRaceReturnsConflict(t *testing.T) {
	f := newFixture()
	f.accounts.createErr = domain.ErrUserExists

	res, err := f.svc.Register(ctx, ports.RegisterInput{Email: "race@example.com", Password: strongPassword})
	if err != nil {
		t.Fatalf("expected result, got error %v", err)
	}
	if res.Reason != ports.FailureConflict {
		t.Fatalf("expected conflict, got %+v", res)
	}
}

func TestIdentityService_Register_WeakPassword(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Register(ctx, ports.RegisterInput{Email: "weak@example.com", Password: "short"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Reason != ports.FailureWeakPassword {
		t.Fatalf("expected weak password, got %+v", res)
	}
	if len(f.accounts.byID) != 0 {
		t.Fatalf("expected no account")
	}
}

func TestIdentityService_Register_MissingFields(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Register(ctx, ports.RegisterInput{Email: "  ", Password: strongPassword})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Reason != ports.FailureValidation {
		t.Fatalf("expected validation failure, got %+v", res)
	}
}

func TestIdentityService_Register_UsernameTaken(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.RegisterUser(ctx, ports.FixedRoleInput{Email: "a@example.com", Username: "neo", Password: strongPassword}); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := f.svc.RegisterUser(ctx, ports.FixedRoleInput{Email: "b@example.com", Username: "NEO", Password: strongPassword})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Reason != ports.FailureConflict || res.Message != msgUsernameTaken {
		t.Fatalf("expected username conflict, got %+v", res)
	}
}

func TestIdentityService_Register_StoreErrorPropagates(t *testing.T) {
	f := newFixture()
	f.accounts.findErr = errors.New("connection refused")

	if _, err := f.svc.Register(ctx, ports.RegisterInput{Email: "x@example.com", Password: strongPassword}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIdentityService_RegisterUser_FixedRoleOnly(t *testing.T) {
	f := newFixture()

	res, err := f.svc.RegisterUser(ctx, ports.FixedRoleInput{Email: "user@example.com", FullName: "U", Password: strongPassword})
	if err != nil || !res.Success {
		t.Fatalf("RegisterUser failed: %v %+v", err, res)
	}

	account, _ := f.accounts.FindByEmail(ctx, "user@example.com")
	if len(account.Roles) != 1 || account.Roles[0] != domain.RoleUser {
		t.Fatalf("expected roles [User], got %v", account.Roles)
	}
}

func TestIdentityService_RegisterFixedRole_ConflictMessagePerTier(t *testing.T) {
	tests := []struct {
		name     string
		register func(*IdentityService, ports.FixedRoleInput) (*ports.RegisterResult, error)
		want     string
	}{
		{"user", func(s *IdentityService, in ports.FixedRoleInput) (*ports.RegisterResult, error) {
			return s.RegisterUser(ctx, in)
		}, "User already exists"},
		{"admin", func(s *IdentityService, in ports.FixedRoleInput) (*ports.RegisterResult, error) {
			return s.RegisterAdmin(ctx, in)
		}, "Admin already exists"},
		{"super admin", func(s *IdentityService, in ports.FixedRoleInput) (*ports.RegisterResult, error) {
			return s.RegisterSuperAdmin(ctx, in)
		}, "SuperAdmin already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := ports.FixedRoleInput{Email: "tier@example.com", Password: strongPassword}
			if res, err := tt.register(f.svc, in); err != nil || !res.Success {
				t.Fatalf("first registration failed: %v %+v", err, res)
			}
			res, err := tt.register(f.svc, in)
			if err != nil {
				t.Fatalf("second registration error: %v", err)
			}
			if res.Reason != ports.FailureConflict || res.Message != tt.want {
				t.Fatalf("expected %q conflict, got %+v", tt.want, res)
			}
		})
	}
}

func TestIdentityService_RegisterWithFixedRole_UnknownRole(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.RegisterWithFixedRole(ctx, ports.FixedRoleInput{Email: "x@example.com", Password: strongPassword}, "Owner"); err == nil {
		t.Fatalf("expected error for unknown fixed role")
	}
}

func TestIdentityService_EnsureRole_Idempotent(t *testing.T) {
	f := newFixture()

	if err := f.svc.EnsureRole(ctx, domain.RoleAdmin); err != nil {
		t.Fatalf("first EnsureRole: %v", err)
	}
	if err := f.svc.EnsureRole(ctx, domain.RoleAdmin); err != nil {
		t.Fatalf("second EnsureRole: %v", err)
	}
	if f.roles.creates != 1 {
		t.Fatalf("expected one role record, got %d", f.roles.creates)
	}
	exists, _ := f.roles.Exists(ctx, domain.RoleAdmin)
	if !exists {
		t.Fatalf("expected role to exist")
	}
}

func TestIdentityService_EnsureRole_DuplicateKeyTreatedAsExisting(t *testing.T) {
	f := newFixture()
	f.roles.createErr = domain.ErrRoleExists

	if err := f.svc.EnsureRole(ctx, domain.RoleUser); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestIdentityService_Login_Success(t *testing.T) {
	f := newFixture()
	reg := f.mustRegister("frank@example.com", strongPassword, domain.RoleAdmin)

	res, err := f.svc.Login(ctx, ports.CredentialsInput{Email: "Frank@Example.com", Password: strongPassword})
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if !res.Success || res.Message != msgLoginSucceeded {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.UserID != reg.UserID || res.Email != "frank@example.com" {
		t.Fatalf("unexpected identity: %+v", res)
	}

	claims, err := f.issuer.Parse(res.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != domain.RoleAdmin {
		t.Fatalf("expected token roles [Admin], got %v", claims.Roles)
	}
	if got := f.tokens.tracked[reg.UserID]; len(got) != 1 || got[0] != claims.TokenID {
		t.Fatalf("expected token id to be tracked, got %v", got)
	}
}

func TestIdentityService_Login_GenericFailureMessage(t *testing.T) {
	f := newFixture()
	f.mustRegister("gina@example.com", strongPassword)

	wrongPassword, err := f.svc.Login(ctx, ports.CredentialsInput{Email: "gina@example.com", Password: "Wrong!pass"})
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	unknownEmail, err := f.svc.Login(ctx, ports.CredentialsInput{Email: "nobody@example.com", Password: strongPassword})
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	if wrongPassword.Success || unknownEmail.Success {
		t.Fatalf("expected both logins to fail")
	}
	if wrongPassword.Message != unknownEmail.Message || wrongPassword.Reason != unknownEmail.Reason {
		t.Fatalf("failure results differ: %+v vs %+v", wrongPassword.Result, unknownEmail.Result)
	}
	if wrongPassword.Message != "Invalid email/password" {
		t.Fatalf("unexpected message %q", wrongPassword.Message)
	}
}

func TestIdentityService_Login_LocksOutAfterRepeatedFailures(t *testing.T) {
	f := newFixture()
	f.mustRegister("hank@example.com", strongPassword)

	for i := 0; i < 3; i++ {
		res, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "hank@example.com", Password: "Bad!pass1"})
		if res.Reason != ports.FailureInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid credentials, got %+v", i, res)
		}
	}

	res, err := f.svc.Login(ctx, ports.CredentialsInput{Email: "hank@example.com", Password: strongPassword})
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if res.Success || res.Reason != ports.FailureLockedOut {
		t.Fatalf("expected lockout, got %+v", res)
	}
}

func TestIdentityService_Login_SuccessResetsFailures(t *testing.T) {
	f := newFixture()
	f.mustRegister("ivy@example.com", strongPassword)

	_, _ = f.svc.Login(ctx, ports.CredentialsInput{Email: "ivy@example.com", Password: "Bad!pass1"})
	res, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "ivy@example.com", Password: strongPassword})
	if !res.Success {
		t.Fatalf("expected login success, got %+v", res)
	}
	if f.throttle.failures["ivy@example.com"] != 0 || f.throttle.resets != 1 {
		t.Fatalf("expected failures to be reset, got %v", f.throttle.failures)
	}
}

// ---------------------------------------------------------------------------
// ChangePassword
// ---------------------------------------------------------------------------

func TestIdentityService_ChangePassword_IssuesNewTokenAndRevokesOld(t *testing.T) {
	f := newFixture()
	f.mustRegister("jack@example.com", strongPassword, domain.RoleUser)

	login, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "jack@example.com", Password: strongPassword})
	oldClaims, _ := f.issuer.Parse(login.AccessToken)

	res, err := f.svc.ChangePassword(ctx, ports.ChangePasswordInput{
		Email:       "jack@example.com",
		OldPassword: strongPassword,
		NewPassword: "N3w-Passw0rd",
	})
	if err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if !res.Success || res.AccessToken == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.AccessToken == login.AccessToken {
		t.Fatalf("expected a newly issued token")
	}
	newClaims, _ := f.issuer.Parse(res.AccessToken)
	if newClaims.TokenID == oldClaims.TokenID {
		t.Fatalf("expected distinct token ids")
	}
	if !f.tokens.revoked[oldClaims.TokenID] {
		t.Fatalf("expected pre-change token to be revoked")
	}
	if f.tokens.revoked[newClaims.TokenID] {
		t.Fatalf("new token must not be revoked")
	}

	if r, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "jack@example.com", Password: strongPassword}); r.Success {
		t.Fatalf("old password must no longer work")
	}
	if r, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "jack@example.com", Password: "N3w-Passw0rd"}); !r.Success {
		t.Fatalf("new password must work, got %+v", r)
	}
}

func TestIdentityService_ChangePassword_Failures(t *testing.T) {
	f := newFixture()
	f.mustRegister("kate@example.com", strongPassword)

	tests := []struct {
		name   string
		in     ports.ChangePasswordInput
		reason ports.FailureReason
	}{
		{"unknown account", ports.ChangePasswordInput{Email: "ghost@example.com", OldPassword: strongPassword, NewPassword: "N3w-Passw0rd"}, ports.FailureNotFound},
		{"wrong old password", ports.ChangePasswordInput{Email: "kate@example.com", OldPassword: "Wrong!pass", NewPassword: "N3w-Passw0rd"}, ports.FailureInvalidCredentials},
		{"weak new password", ports.ChangePasswordInput{Email: "kate@example.com", OldPassword: strongPassword, NewPassword: "weak"}, ports.FailureWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.ChangePassword(ctx, tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success || res.Reason != tt.reason {
				t.Fatalf("expected %s, got %+v", tt.reason, res)
			}
		})
	}
}

func TestIdentityService_ChangePassword_UnexpectedErrorBecomesResult(t *testing.T) {
	f := newFixture()
	f.mustRegister("liam@example.com", strongPassword)
	f.accounts.updateErr = errors.New("write concern failed")

	res, err := f.svc.ChangePassword(ctx, ports.ChangePasswordInput{
		Email:       "liam@example.com",
		OldPassword: strongPassword,
		NewPassword: "N3w-Passw0rd",
	})
	if err != nil {
		t.Fatalf("expected error to be folded into the result, got %v", err)
	}
	if res.Success || res.Reason != ports.FailureError || res.Message != msgChangePasswordFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func TestIdentityService_Logout_RevokesTokens(t *testing.T) {
	f := newFixture()
	reg := f.mustRegister("mia@example.com", strongPassword)
	login, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "mia@example.com", Password: strongPassword})
	claims, _ := f.issuer.Parse(login.AccessToken)

	res, err := f.svc.Logout(ctx, ports.CredentialsInput{Email: "mia@example.com", Password: strongPassword})
	if err != nil || !res.Success {
		t.Fatalf("logout failed: %v %+v", err, res)
	}
	if !f.tokens.revoked[claims.TokenID] {
		t.Fatalf("expected token to be revoked")
	}
	if len(f.tokens.tracked[reg.UserID]) != 0 {
		t.Fatalf("expected tracked tokens to be cleared")
	}
}

func TestIdentityService_Logout_RequiresValidCredentials(t *testing.T) {
	f := newFixture()
	f.mustRegister("noah@example.com", strongPassword)

	for _, in := range []ports.CredentialsInput{
		{Email: "noah@example.com", Password: "Wrong!pass"},
		{Email: "ghost@example.com", Password: strongPassword},
	} {
		res, err := f.svc.Logout(ctx, in)
		if err != nil {
			t.Fatalf("logout error: %v", err)
		}
		if res.Success || res.Reason != ports.FailureInvalidCredentials {
			t.Fatalf("expected invalid credentials for %s, got %+v", in.Email, res)
		}
	}
}

func TestIdentityService_Logout_RevocationErrorPropagates(t *testing.T) {
	f := newFixture()
	f.mustRegister("olga@example.com", strongPassword)
	f.tokens.revokeErr = errors.New("redis down")

	if _, err := f.svc.Logout(ctx, ports.CredentialsInput{Email: "olga@example.com", Password: strongPassword}); err == nil {
		t.Fatalf("expected error")
	}
}

// ---------------------------------------------------------------------------
// DeleteAccount
// ---------------------------------------------------------------------------

func TestIdentityService_DeleteAccount_RemovesAccount(t *testing.T) {
	f := newFixture()
	f.mustRegister("paul@example.com", strongPassword)

	res, err := f.svc.DeleteAccount(ctx, ports.CredentialsInput{Email: "paul@example.com", Password: strongPassword})
	if err != nil || !res.Success {
		t.Fatalf("delete failed: %v %+v", err, res)
	}
	if _, err := f.accounts.FindByEmail(ctx, "paul@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected account to be gone, got %v", err)
	}
	login, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "paul@example.com", Password: strongPassword})
	if login.Success {
		t.Fatalf("login must fail after deletion")
	}
}

func TestIdentityService_DeleteAccount_Failures(t *testing.T) {
	f := newFixture()
	f.mustRegister("quinn@example.com", strongPassword)

	res, _ := f.svc.DeleteAccount(ctx, ports.CredentialsInput{Email: "ghost@example.com", Password: strongPassword})
	if res.Reason != ports.FailureNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}
	res, _ = f.svc.DeleteAccount(ctx, ports.CredentialsInput{Email: "quinn@example.com", Password: "Wrong!pass"})
	if res.Reason != ports.FailureInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %+v", res)
	}
	if len(f.accounts.byID) != 1 {
		t.Fatalf("account must survive failed deletion")
	}
}

func TestIdentityService_DeleteAccount_StoreFailureKeepsRevocation(t *testing.T) {
	f := newFixture()
	reg := f.mustRegister("rita@example.com", strongPassword)
	login, _ := f.svc.Login(ctx, ports.CredentialsInput{Email: "rita@example.com", Password: strongPassword})
	claims, _ := f.issuer.Parse(login.AccessToken)
	f.accounts.deleteErr = errors.New("delete failed")

	res, err := f.svc.DeleteAccount(ctx, ports.CredentialsInput{Email: "rita@example.com", Password: strongPassword})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reason != ports.FailureValidation || res.Message != msgDeleteFailed {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	if !f.tokens.revoked[claims.TokenID] {
		t.Fatalf("revocation is not rolled back")
	}
	if _, ok := f.accounts.byID[reg.UserID]; !ok {
		t.Fatalf("account should still exist")
	}
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

func TestIdentityService_RecordsAuditTrail(t *testing.T) {
	f := newFixture()
	f.mustRegister("sam@example.com", strongPassword, domain.RoleUser)
	_, _ = f.svc.Login(ctx, ports.CredentialsInput{Email: "sam@example.com", Password: "Bad!pass1"})
	_, _ = f.svc.Login(ctx, ports.CredentialsInput{Email: "sam@example.com", Password: strongPassword})

	got := f.audit.types()
	want := []domain.AuditEventType{
		domain.AuditRoleAssigned,
		domain.AuditAccountRegistered,
		domain.AuditLoginFailed,
		domain.AuditLoginSucceeded,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
