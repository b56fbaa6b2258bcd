package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinFullNameLength = 2
	MaxFullNameLength = 100

	MinProjectTitleLength       = 3
	MaxProjectTitleLength       = 200
	MinProjectDescriptionLength = 10
	MaxProjectDescriptionLength = 5000

	MinBidMessageLength = 0
	MaxBidMessageLength = 2000

	MinMilestoneTitleLength = 1
	MaxMilestoneTitleLength = 200

	MinDisputeDescriptionLength = 10
	MaxDisputeDescriptionLength = 5000

	MinAmount = 0.0
	MaxAmount = 10000000000.0 // 10 миллиардов IQD
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	return nil
}

// ValidateAmount проверяет денежную сумму. Суммы хранятся в целых IQD.
func ValidateAmount(fieldName string, amount float64) error {
	if amount <= MinAmount {
		return fmt.Errorf("%s должна быть положительной", fieldName)
	}
	if amount > MaxAmount {
		return fmt.Errorf("%s превышает допустимый максимум", fieldName)
	}
	if amount != float64(int64(amount)) {
		return fmt.Errorf("%s должна быть целым числом динаров", fieldName)
	}
	return nil
}
