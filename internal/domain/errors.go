package domain

import "errors"

var (
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidName            = errors.New("invalid name")
	ErrInvalidPhone           = errors.New("invalid phone")
	ErrInvalidTitle           = errors.New("invalid title")
	ErrInvalidPriority        = errors.New("invalid priority")
	ErrInvalidStage           = errors.New("invalid stage")
	ErrInvalidSourceType      = errors.New("invalid source type")
	ErrInvalidLeadStatus      = errors.New("invalid lead status")
	ErrInvalidTaskStatus      = errors.New("invalid task status")
	ErrInvalidActivityType    = errors.New("invalid activity type")
	ErrInvalidNextActionType  = errors.New("invalid next action type")
	ErrNextActionTypeRequired = errors.New("next action type is required")
	ErrInvalidSLAHours        = errors.New("invalid sla hours")
)
