package user

import (
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studentportal/core"
)

var (
	pwdMismatchTag  = "eqfield"
	pwdMismatchText = "Passwords do not match"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("Password must be at least %d characters long", pwdMinLen)

	pwdUpperTag  = "pwdupper"
	pwdUpperText = "Password must contain at least one uppercase letter"

	pwdLowerTag  = "pwdlower"
	pwdLowerText = "Password must contain at least one lowercase letter"

	pwdDigitTag  = "pwddigit"
	pwdDigitText = "Password must contain at least one digit"

	pwdStrongText = "Password is strong"

	pwdTexts = map[string]string{
		pwdMinLenTag: pwdMinLenText,
		pwdUpperTag:  pwdUpperText,
		pwdLowerTag:  pwdLowerText,
		pwdDigitTag:  pwdDigitText,
	}
)

// RegisterValidators registers the user struct validations and their translations.
func RegisterValidators(v *core.Validator) {
	validate, translator := v.Engine(), v.Translator()
	validate.RegisterStructValidation(userStructValidation, NewUser{}, ChangePassword{})

	core.RegisterCustomTranslation(validate, translator, pwdMismatchTag, pwdMismatchText, true)
	for tag, text := range pwdTexts {
		core.RegisterCustomTranslation(validate, translator, tag, text, true)
	}
}

// CheckStrength applies the password policy and returns the first failing rule's message.
func CheckStrength(pwd string) (bool, string) {
	if tag := failedPasswordRule(pwd); tag != "" {
		return false, pwdTexts[tag]
	}
	return true, pwdStrongText
}

// userStructValidation does struct level validation on NewUser and ChangePassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if usr.Password != "" {
			validatePassword(usr.Password, "password", "Password", sl)
		}
	case ChangePassword:
		if usr.NewPassword != "" {
			validatePassword(usr.NewPassword, "new_password", "NewPassword", sl)
		}
	}
}

func validatePassword(pwd, field, structField string, sl validator.StructLevel) {
	if tag := failedPasswordRule(pwd); tag != "" {
		sl.ReportError(pwd, field, structField, tag, "")
	}
}

// failedPasswordRule returns the tag of the first rule pwd breaks, in order:
// - minLen: 8
// - 1 uppercase
// - 1 lowercase
// - 1 digit
func failedPasswordRule(pwd string) string {
	if len([]rune(pwd)) < pwdMinLen {
		return pwdMinLenTag
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range pwd {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}

	switch {
	case !hasUpper:
		return pwdUpperTag
	case !hasLower:
		return pwdLowerTag
	case !hasDigit:
		return pwdDigitTag
	}
	return ""
}
