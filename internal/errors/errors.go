package errors

import (
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// IsCode 判断错误是否携带指定的业务错误码
func IsCode(err error, code int) bool {
	if err == nil {
		return false
	}
	return kerrors.FromError(err).Code == int32(code)
}
