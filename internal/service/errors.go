package service

import "errors"

var (
	// ErrInvalidInput некорректные входные данные
	ErrInvalidInput = errors.New("invalid input")
	// ErrTotalMismatch итог клиента расходится с суммой позиций
	ErrTotalMismatch = errors.New("order total does not match items")
	// ErrInvalidFormat загруженная копия не содержит products[], orders[], pushSubscriptions[]
	ErrInvalidFormat = errors.New("invalid format: expected object with products[], orders[], pushSubscriptions[]")
)
