package api

import (
	"unicode/utf8"
)

// maxContactRefLen is the maximum length of a contact reference (a phone
// number or provider client identifier).
const maxContactRefLen = 64

// maxUsernameLen is the maximum length of the operator username.
const maxUsernameLen = 200

// maxPasswordLen is the maximum length for passwords.
const maxPasswordLen = 256

// maxDigitsLen bounds the keypad input accepted on a webhook.
const maxDigitsLen = 64

// validateStringLen checks that a string does not exceed maxLen characters.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateRequiredStringLen checks that a non-empty string does not exceed maxLen characters.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if value == "" {
		return field + " is required"
	}
	return validateStringLen(field, value, maxLen)
}

// validateContactRef checks a contact reference taken from a webhook or URL.
func validateContactRef(field, value string) string {
	if msg := validateRequiredStringLen(field, value, maxContactRefLen); msg != "" {
		return msg
	}
	return validateNoControlChars(field, value)
}

// validateDigits checks gathered keypad input for size and control
// characters only. Empty is allowed: most webhooks carry no digits. Keys the
// flow does not understand are left to the engine, which answers with the
// retry prompt.
func validateDigits(field, value string) string {
	if msg := validateStringLen(field, value, maxDigitsLen); msg != "" {
		return msg
	}
	return validateNoControlChars(field, value)
}

// containsControlChars checks whether a string has control characters
// (except common whitespace like \n, \r, \t).
func containsControlChars(s string) bool {
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
	}
	return false
}

// validateNoControlChars rejects strings with control characters.
func validateNoControlChars(field, value string) string {
	if containsControlChars(value) {
		return field + " contains invalid characters"
	}
	return ""
}
