// Package validation содержит проверки пользовательского ввода форм.
package validation

import (
	"errors"
	"math"
	"path"
	"strings"
	"unicode"
)

// MinTransactionAmount задаёт минимальную сумму пополнения и вывода.
const MinTransactionAmount = 200

// MinPasswordLength задаёт минимальную длину пароля.
const MinPasswordLength = 6

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrMobileRequired     = errors.New("mobile number is required")
	ErrInvalidMobile      = errors.New("invalid mobile number")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrIdentifierRequired = errors.New("username or mobile is required")
	ErrPasswordRequired   = errors.New("password is required")
)

// IsValidAmount сообщает, что сумма конечна и не меньше минимальной.
func IsValidAmount(amount float64) bool {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false
	}
	return amount >= MinTransactionAmount
}

// IsValidMobile проверяет номер телефона: необязательный "+" и от 6 до 15 цифр.
func IsValidMobile(mobile string) bool {
	mobile = strings.TrimPrefix(strings.TrimSpace(mobile), "+")
	if len(mobile) < 6 || len(mobile) > 15 {
		return false
	}
	for _, r := range mobile {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Registration проверяет данные формы регистрации.
func Registration(username, mobile, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameRequired
	}
	if strings.TrimSpace(mobile) == "" {
		return ErrMobileRequired
	}
	if !IsValidMobile(mobile) {
		return ErrInvalidMobile
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// Credentials проверяет данные формы входа.
func Credentials(identifier, password string) error {
	if strings.TrimSpace(identifier) == "" {
		return ErrIdentifierRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// FileExtension возвращает расширение исходного имени файла без точки.
// Для имени без точки возвращается само имя, как при разбиении по последней точке.
func FileExtension(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return strings.ToLower(base[i+1:])
	}
	return strings.ToLower(base)
}
