package http

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/usecase"
)

const passwordSpecials = "@$!%*?&"

var (
	phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)

	errWeakPassword = errors.New("must contain an uppercase letter, a lowercase letter, a number and one of " + passwordSpecials)
)

// strongPassword requires one of each character class and nothing outside them.
func strongPassword(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			lower = true
		case 'A' <= r && r <= 'Z':
			upper = true
		case '0' <= r && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return errWeakPassword
		}
	}
	if !(lower && upper && digit && special) {
		return errWeakPassword
	}
	return nil
}

func passwordRules() []validation.Rule {
	return []validation.Rule{validation.Required, validation.Length(8, 72), validation.By(strongPassword)}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, passwordRules()...),
		validation.Field(&r.FirstName, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.LastName, validation.Required, validation.Length(2, 50)),
	)
}

// loginRequest defines the expected JSON payload for the login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// mfaRequest defines the expected JSON payload for the MFA verification endpoint.
type mfaRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

func (r mfaRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ChallengeToken, validation.Required),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (r tokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, is.Hexadecimal),
	)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, is.Hexadecimal),
		validation.Field(&r.Password, passwordRules()...),
	)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, passwordRules()...),
	)
}

type locationRequest struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Address string `json:"address"`
}

func (r locationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Country, validation.Length(0, 100)),
		validation.Field(&r.City, validation.Length(0, 100)),
		validation.Field(&r.Address, validation.Length(0, 200)),
	)
}

type updateProfileRequest struct {
	FirstName *string          `json:"first_name"`
	LastName  *string          `json:"last_name"`
	Phone     *string          `json:"phone"`
	Bio       *string          `json:"bio"`
	BirthDate *string          `json:"birth_date"`
	Location  *locationRequest `json:"location"`
}

const birthDateLayout = "2006-01-02"

func (r updateProfileRequest) Validate() error {
	if r.FirstName == nil && r.LastName == nil && r.Phone == nil && r.Bio == nil && r.BirthDate == nil && r.Location == nil {
		return validation.Errors{"body": errors.New("at least one field is required")}
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(2, 50)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(2, 50)),
		validation.Field(&r.Phone, validation.Match(phonePattern)),
		validation.Field(&r.Bio, validation.Length(0, 500)),
		validation.Field(&r.BirthDate, validation.Date(birthDateLayout)),
		validation.Field(&r.Location),
	)
}

func parseBirthDate(s string) (time.Time, error) {
	return time.Parse(birthDateLayout, s)
}

// toUpdate converts a validated request into a domain update.
func (r updateProfileRequest) toUpdate() domain.ProfileUpdate {
	upd := domain.ProfileUpdate{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Bio:       r.Bio,
	}
	if r.BirthDate != nil {
		if d, err := parseBirthDate(*r.BirthDate); err == nil {
			upd.BirthDate = &d
		}
	}
	if r.Location != nil {
		upd.Location = &domain.Location{
			Country: r.Location.Country,
			City:    r.Location.City,
			Address: r.Location.Address,
		}
	}
	return upd
}

type updateRoleRequest struct {
	UserID string `param:"userId" json:"-"`
	Role   string `json:"role"`
}

func (r updateRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.Role, validation.Required, validation.In(
			string(domain.RoleUser),
			string(domain.RoleAdmin),
			string(domain.RoleModerator),
		)),
	)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (r mfaCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (r passwordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	)
}

type userIDRequest struct {
	UserID string `param:"userId" json:"-"`
}

func (r userIDRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
	)
}

// activityRequest lists a user's trail. UserID is empty on the self route.
type activityRequest struct {
	UserID string `param:"userId" json:"-"`
	Limit  int    `query:"limit" json:"-"`
}

func (r activityRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, is.UUID),
		validation.Field(&r.Limit, validation.Min(1), validation.Max(usecase.MaxActivityLimit)),
	)
}
