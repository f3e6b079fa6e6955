package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmailValid(t *testing.T) {
	assert.True(t, IsEmailValid("ana@example.com"))
	assert.True(t, IsEmailValid("  ana@example.com "))
	assert.False(t, IsEmailValid("ana@example"))
	assert.False(t, IsEmailValid("not-an-email"))
	assert.False(t, IsEmailValid("@example.com"))
	assert.False(t, IsEmailValid(""))
}

func TestIsPhoneValid(t *testing.T) {
	assert.True(t, IsPhoneValid("+55 11 91234-5678"))
	assert.True(t, IsPhoneValid("(11) 91234-5678"))
	assert.True(t, IsPhoneValid("1191234567"))
	assert.False(t, IsPhoneValid("call me maybe"))
	assert.False(t, IsPhoneValid("123"))
	assert.False(t, IsPhoneValid(""))
}
