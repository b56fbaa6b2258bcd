package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount("сумма", 1))
	assert.NoError(t, ValidateAmount("сумма", 1000000))

	assert.Error(t, ValidateAmount("сумма", 0))
	assert.Error(t, ValidateAmount("сумма", -100))
	assert.Error(t, ValidateAmount("сумма", 100.5))
	assert.Error(t, ValidateAmount("сумма", MaxAmount+1))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
}

func TestValidateLength(t *testing.T) {
	assert.NoError(t, ValidateLength("название", "дом", 3, 200))
	assert.Error(t, ValidateLength("название", "до", 3, 200))
	assert.Error(t, ValidateLength("описание", "", MinProjectDescriptionLength, MaxProjectDescriptionLength))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Password1"))
	assert.Error(t, ValidatePassword("short1A"))
	assert.Error(t, ValidatePassword("alllowercase1"))
	assert.Error(t, ValidatePassword("ALLUPPERCASE1"))
	assert.Error(t, ValidatePassword("NoDigitsHere"))
}
