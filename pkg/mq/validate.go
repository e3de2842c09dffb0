package mq

import "fmt"

// RequireNonEmpty validates a string value is provided.
func RequireNonEmpty(name string, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// RequirePositive validates an integer value is greater than zero.
func RequirePositive(name string, value int) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}
