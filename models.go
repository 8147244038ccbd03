package auth

import (
	"encoding/json"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Credential is the token pair issued by the backend. The refresh token
// is optional: some deployments rotate only the access token.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// FlexID tolerates the backend sending numeric or string identifiers.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Int returns the numeric form of the ID, or 0 when it is not numeric.
func (f FlexID) Int() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// UserProfile mirrors the profile document served by auth/profile.
type UserProfile struct {
	ID          FlexID     `json:"id,omitempty"`
	Username    string     `json:"username,omitempty"`
	Email       string     `json:"email,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Roles       []string   `json:"roles,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	IsActive    bool       `json:"is_active,omitempty"`
	DateJoined  *time.Time `json:"date_joined,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
}

// HasRole checks the profile's role list.
func (u *UserProfile) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks the profile's permission list.
func (u *UserProfile) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// tokenEnvelope accepts both token field conventions the backend uses:
// the register view responds with access_token/refresh_token while the
// login and refresh views respond with access/refresh.
type tokenEnvelope struct {
	AccessToken  string `json:"access_token"`
	Access       string `json:"access"`
	RefreshToken string `json:"refresh_token"`
	Refresh      string `json:"refresh"`
}

func (e tokenEnvelope) credential() (Credential, bool) {
	cred := Credential{
		AccessToken:  e.AccessToken,
		RefreshToken: e.RefreshToken,
	}
	if cred.AccessToken == "" {
		cred.AccessToken = e.Access
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = e.Refresh
	}
	return cred, cred.AccessToken != ""
}

// SignUpPayload is the registration form sent to auth/register.
type SignUpPayload struct {
	Username        string `json:"username,omitempty"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Password, validation.Required, validation.By(validatePasswordRule)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// SignInPayload is the credential form sent to auth/login.
type SignInPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p SignInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

// UpdateProfilePayload carries the editable profile fields.
type UpdateProfilePayload struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (p UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Length(6, 100), is.Email),
		validation.Field(&p.FirstName, validation.Length(0, 255), validation.By(notWhitespaceOnly)),
		validation.Field(&p.LastName, validation.Length(0, 255), validation.By(notWhitespaceOnly)),
	)
}

// ChangePasswordPayload is sent to auth/change-password.
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (p ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CurrentPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.By(validatePasswordRule)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(p.NewPassword)),
		),
	)
}

// ResetPasswordPayload finalizes a password reset with the emailed token.
type ResetPasswordPayload struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (p ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required),
		validation.Field(&p.Password, validation.Required, validation.By(validatePasswordRule)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}
