package controllers

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data}
}

// ErrorResponse 错误响应，status 使用HTTP状态码
func ErrorResponse(code int, msg string, err error) *APIResponse {
	resp := &APIResponse{Status: code, Msg: msg}
	if err != nil {
		resp.Data = map[string]string{"error": err.Error()}
	}
	return resp
}

// renderError 写入错误状态码和错误响应
func renderError(w http.ResponseWriter, r *http.Request, code int, msg string, err error) {
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse(code, msg, err))
}
