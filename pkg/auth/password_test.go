package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Correct1Horse")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "Correct1Horse", hash)

	assert.NoError(t, ComparePassword(hash, "Correct1Horse"))
	assert.Error(t, ComparePassword(hash, "wrong-password"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Abcdefg1"))

	// too short
	assert.Error(t, ValidatePassword("Ab1"))
	// missing digit
	assert.Error(t, ValidatePassword("Abcdefgh"))
	// missing uppercase
	assert.Error(t, ValidatePassword("abcdefg1"))
	// missing lowercase
	assert.Error(t, ValidatePassword("ABCDEFG1"))
}

func TestValidatePassword_ErrorDetails(t *testing.T) {
	err := ValidatePassword("abc")
	assert.Error(t, err)

	ve, ok := err.(*PasswordValidationError)
	assert.True(t, ok)
	assert.NotEmpty(t, ve.Errors)
}
