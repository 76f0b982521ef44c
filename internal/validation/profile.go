package validation

import (
	"postapp/internal/models"
)

const (
	MaxFullNameLength = 100
	MaxBioLength      = 500
)

// Registration is a validated sign-up request.
type Registration struct {
	Username string
	Email    string
	Password string
	FullName string
}

// ValidateRegistration checks every sign-up field and reports all failures.
func ValidateRegistration(p Payload) (Registration, error) {
	var v violations
	var reg Registration

	username, _ := p.str("username")
	reg.Username = trimmed(username)
	if reg.Username == "" {
		v.add("username", "Username is required")
	} else if err := ValidateUsername(reg.Username); err != nil {
		v.add("username", err.Error())
	}

	email, _ := p.str("email")
	reg.Email = NormalizeEmail(email)
	if err := ValidateEmail(reg.Email); err != nil {
		v.add("email", err.Error())
	}

	reg.Password, _ = p.str("password")
	if err := ValidatePassword(reg.Password); err != nil {
		v.add("password", err.Error())
	}

	if p.has("full_name") {
		name, ok := p.str("full_name")
		name = trimmed(name)
		if !ok || runeLen(name) > MaxFullNameLength {
			v.add("full_name", "Full name must be at most 100 characters")
		} else {
			reg.FullName = name
		}
	}

	if err := v.Err(); err != nil {
		return Registration{}, err
	}
	return reg, nil
}

// Login is a validated sign-in request. Identifier may be a username or an
// email address.
type Login struct {
	Identifier string
	Password   string
}

// ValidateLogin accepts the identifier under "login", "username" or "email".
func ValidateLogin(p Payload) (Login, error) {
	var v violations
	var in Login

	for _, key := range []string{"login", "username", "email"} {
		if s, ok := p.str(key); ok && trimmed(s) != "" {
			in.Identifier = trimmed(s)
			break
		}
	}
	if in.Identifier == "" {
		v.add("login", "Username or email is required")
	}
	in.Password, _ = p.str("password")
	if in.Password == "" {
		v.add("password", "Password is required")
	}

	if err := v.Err(); err != nil {
		return Login{}, err
	}
	return in, nil
}

// ValidateProfile checks a partial profile update.
func ValidateProfile(p Payload) (models.ProfilePatch, error) {
	var v violations
	var patch models.ProfilePatch

	if p.has("full_name") {
		name, ok := p.str("full_name")
		name = trimmed(name)
		if !ok || runeLen(name) > MaxFullNameLength {
			v.add("full_name", "Full name must be at most 100 characters")
		} else {
			patch.FullName = models.Some(name)
		}
	}
	if p.has("bio") {
		bio, ok := p.str("bio")
		bio = trimmed(bio)
		if !ok || runeLen(bio) > MaxBioLength {
			v.add("bio", "Bio must be at most 500 characters")
		} else {
			patch.Bio = models.Some(bio)
		}
	}
	if p.has("profile_image") {
		img, ok := p.str("profile_image")
		img = trimmed(img)
		switch {
		case !ok && !p.isNull("profile_image"):
			v.add("profile_image", "Profile image must be a valid URL")
		case img == "":
			patch.ProfileImage = models.Some("")
		case !ValidURL(img):
			v.add("profile_image", "Profile image must be a valid URL")
		default:
			patch.ProfileImage = models.Some(img)
		}
	}

	if err := v.Err(); err != nil {
		return models.ProfilePatch{}, err
	}
	return patch, nil
}
