package response

import "github.com/gin-gonic/gin"

// MessageResponse is the body used for simple acknowledgements and for
// every rejected request.
type MessageResponse struct {
	Message string `json:"message"`
}

func Message(c *gin.Context, msg string) {
	c.JSON(200, MessageResponse{Message: msg})
}

func Error(c *gin.Context, httpStatus int, msg string) {
	c.JSON(httpStatus, MessageResponse{Message: msg})
}
