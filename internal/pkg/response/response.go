package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/consultrag/internal/pkg/errcode"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error replies with HTTP 200 and a coded envelope; an empty message uses
// the code's default text.
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = errcode.Message(code)
	}
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}
