package contract

import "errors"

var (
	ErrLeadNotFound    = errors.New("lead not found")
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrInvalidArgs     = errors.New("invalid tool arguments")
	ErrAddressRequired = errors.New("please set the address before proceding")
	ErrDatePassed      = errors.New("date has passed")
	ErrSlotTaken       = errors.New("time slot already booked")
	ErrValidation      = errors.New("validation failed")
)
