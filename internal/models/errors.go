package models

import "errors"

// 错误分类（handler 层据此映射 HTTP 状态码）
var (
	// ErrValidation 字段校验失败（HTTP 400），错误信息需指明出错字段
	ErrValidation = errors.New("validation error")

	// ErrNotFound 记录不存在（HTTP 404）
	ErrNotFound = errors.New("not found")
)
