package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chart-of-accounts validation errors
var (
	ErrInvalidAccountNumber = errors.New("invalid account number")
	ErrInvalidAccountName   = errors.New("invalid account name")
	ErrAccountExists        = errors.New("account already exists")
)

// Validation constants
const (
	AccountNumberLength  = 4
	MaxAccountNameLength = 100
)

// ValidateAccountNumber checks a BAS account number: four digits, class 1-8.
func ValidateAccountNumber(number string) error {
	if len(number) != AccountNumberLength {
		return fmt.Errorf("%w: %q must have %d digits", ErrInvalidAccountNumber, number, AccountNumberLength)
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q must be numeric", ErrInvalidAccountNumber, number)
		}
	}
	if number[0] < '1' || number[0] > '8' {
		return fmt.Errorf("%w: %q has no BAS class", ErrInvalidAccountNumber, number)
	}
	return nil
}

// ValidateAccountName validates account name
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}

	if utf8.RuneCountInString(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	return nil
}

// ValidateAccountType rejects types that contradict the BAS class of number.
// Class 2 holds both equity (20xx) and liabilities; class 8 holds financial
// income and expenses.
func ValidateAccountType(number string, t AccountType) error {
	if _, err := ParseAccountType(string(t)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	var allowed []AccountType
	switch number[0] {
	case '1':
		allowed = []AccountType{AccountTypeAsset}
	case '2':
		if number[1] == '0' {
			allowed = []AccountType{AccountTypeEquity}
		} else {
			allowed = []AccountType{AccountTypeLiability}
		}
	case '3':
		allowed = []AccountType{AccountTypeIncome}
	case '8':
		allowed = []AccountType{AccountTypeIncome, AccountTypeExpense}
	default:
		allowed = []AccountType{AccountTypeExpense}
	}

	for _, a := range allowed {
		if a == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s account %s does not belong in class %c", ErrInvalidEntry, t, number, number[0])
}
