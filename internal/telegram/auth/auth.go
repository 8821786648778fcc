// Package auth предоставляет интерактивный слой авторизации для команды login.
// Файл auth.go описывает терминальный аутентификатор (auth.UserAuthenticator):
// чтение номера телефона/кода/2FA из консоли, согласие с ToS и первичную регистрацию (SignUp).

package auth

import (
	"context"
	"strings"

	"telegram-session-converter/internal/infra/pr"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// LineReader читает строку с приглашением; SecretReader — то же без эха.
type (
	LineReader   func(prompt string) (string, error)
	SecretReader func(prompt string) (string, error)
)

// TerminalAuthenticator реализует auth.UserAuthenticator и собирает ввод из терминала.
// Не валидирует формат номера.
type TerminalAuthenticator struct {
	// PhoneNumber — телефон для входа; пустое значение запрашивается у пользователя.
	PhoneNumber string

	readLine   LineReader
	readSecret SecretReader
}

var _ auth.UserAuthenticator = TerminalAuthenticator{}

// NewTerminalAuthenticator создаёт аутентификатор поверх общего readline (pr).
func NewTerminalAuthenticator(phone string) TerminalAuthenticator {
	return TerminalAuthenticator{PhoneNumber: phone, readLine: pr.ReadLine, readSecret: pr.ReadSecret}
}

// WithReaders подменяет источники ввода (для тестов и неинтерактивных сценариев).
func (t TerminalAuthenticator) WithReaders(line LineReader, secret SecretReader) TerminalAuthenticator {
	t.readLine, t.readSecret = line, secret
	return t
}

// Phone возвращает заранее известный номер телефона или запрашивает его.
func (t TerminalAuthenticator) Phone(_ context.Context) (string, error) {
	if phone := strings.TrimSpace(t.PhoneNumber); phone != "" {
		return phone, nil
	}
	phone, err := t.readLine("Enter phone number (international format): ")
	if err != nil {
		return "", err
	}
	if phone == "" {
		return "", errors.New("phone number is empty")
	}
	return phone, nil
}

// Code запрашивает код подтверждения у пользователя.
func (t TerminalAuthenticator) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return t.readLine("Enter the code from Telegram: ")
}

// Password считывает пароль двухфакторной аутентификации без отображения вводимых символов.
func (t TerminalAuthenticator) Password(_ context.Context) (string, error) {
	return t.readSecret("Enter 2FA password: ")
}

// AcceptTermsOfService выводит текст условий использования и запрашивает согласие пользователя.
// Принимаются только ответы "y"/"Y"; любой другой ответ трактуется как отказ.
func (t TerminalAuthenticator) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	pr.Printf("Telegram Terms of Service: %s\n", tos.Text)
	resp, err := t.readLine("Do you accept? (y/n): ")
	if err != nil {
		return err
	}
	if resp != "y" && resp != "Y" {
		return errors.New("user did not accept terms of service")
	}
	return nil
}

// SignUp вызывается для незарегистрированного номера: собирает имя и (опциональную) фамилию.
func (t TerminalAuthenticator) SignUp(_ context.Context) (auth.UserInfo, error) {
	firstName, err := t.readLine("Enter your first name: ")
	if err != nil {
		return auth.UserInfo{}, err
	}
	// Фамилия опциональна; ошибку чтения игнорируем, чтобы не блокировать регистрацию.
	lastName, _ := t.readLine("Enter your last name (optional): ")
	return auth.UserInfo{
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}
