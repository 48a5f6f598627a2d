// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "prd-generator-api/pkg/errors"
)

// Response 统一响应结构
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	ErrorCode   string   `json:"error_code,omitempty"`
	Details     string   `json:"details,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ErrorResponse 错误响应结构
// Data 仅在部分成功（如写入中途失败）时携带结果
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Data    any          `json:"data,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, Response[T]{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    httpCode,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// AppError 将应用错误转换为响应，data 可为 nil
func AppError(c *gin.Context, err error, data any) {
	appErr := apperrors.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	resp := ErrorResponse{
		Code:    status,
		Message: appErr.Message,
		Error: &ErrorDetail{
			ErrorCode:   string(appErr.Code),
			Details:     appErr.Detail,
			Suggestions: suggestionsFor(appErr.Code),
		},
		TraceID: c.GetString("trace_id"),
	}
	if data != nil {
		resp.Data = data
	}
	c.AbortWithStatusJSON(status, resp)
}

func suggestionsFor(code apperrors.ErrorCode) []string {
	switch code {
	case apperrors.CodeContextExceeded:
		return []string{"shorten the PRD", "switch to a model with a larger context window"}
	case apperrors.CodeLLMProviderError:
		return []string{"check the API key for the selected model", "check the provider status page"}
	case apperrors.CodeWriteFailed:
		return []string{"check free disk space and permissions of the output directory"}
	default:
		return nil
	}
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound 返回 404 错误
func NotFound(c *gin.Context) {
	AppError(c, apperrors.New(apperrors.CodeNotFound, "route not found").
		WithDetail(c.Request.Method+" "+c.Request.URL.Path), nil)
}

// TooManyRequests 返回 429 错误
func TooManyRequests(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Code:    http.StatusTooManyRequests,
		Message: message,
		Error:   &ErrorDetail{ErrorCode: string(apperrors.CodeTooManyRequests)},
		TraceID: c.GetString("trace_id"),
	})
}
