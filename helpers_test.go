package authify_test

import (
	"errors"

	"github.com/authify-dev/authify"
)

func asAuthError(err error, target **authify.AuthError) bool {
	return errors.As(err, target)
}
