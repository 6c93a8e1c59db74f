package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
)

// Args is the decoded, typed form of a tool-call payload. Exactly one
// variant is produced per call by DecodeArgs.
type Args interface {
	toolName() string
}

type SearchArgs struct {
	Query string `json:"query"`
}

type AddressArgs struct {
	Addresses []contractx.Address `json:"addresses"`
}

type BookArgs struct {
	BookedDate string `json:"booked_date"`
	BookedTime string `json:"booked_time"`
}

type AvailabilityArgs struct {
	Date string `json:"date"`
}

// EmptyArgs covers book_true and stop_messages, which take no parameters.
type EmptyArgs struct{}

func (SearchArgs) toolName() string       { return ToolSearchWeb }
func (AddressArgs) toolName() string      { return ToolSetAddress }
func (BookArgs) toolName() string         { return ToolBookTime }
func (AvailabilityArgs) toolName() string { return ToolListAvailable }
func (EmptyArgs) toolName() string        { return "" }

// DecodeArgs validates the raw argument payload of one tool call against
// the schema of the named tool. The payload comes from the model and is
// untrusted; any failure is returned as an error for the caller to fold
// into a tool-result turn rather than abort the loop.
func DecodeArgs(name, raw string) (Args, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	switch name {
	case ToolSearchWeb:
		var a SearchArgs
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrInvalidArgs, name, err)
		}
		if strings.TrimSpace(a.Query) == "" {
			return nil, fmt.Errorf("%w: missing or invalid { query: string }", contractx.ErrInvalidArgs)
		}
		return a, nil

	case ToolSetAddress:
		a, err := decodeAddressArgs(raw)
		if err != nil {
			return nil, err
		}
		return a, nil

	case ToolBookTime:
		var a BookArgs
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrInvalidArgs, name, err)
		}
		if a.BookedDate == "" || a.BookedTime == "" {
			return nil, fmt.Errorf("%w: invalid booking args", contractx.ErrInvalidArgs)
		}
		return a, nil

	case ToolListAvailable:
		var a AvailabilityArgs
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrInvalidArgs, name, err)
		}
		if a.Date == "" {
			return nil, fmt.Errorf("%w: invalid availability args", contractx.ErrInvalidArgs)
		}
		return a, nil

	case ToolBookTrue, ToolStopMessages:
		return EmptyArgs{}, nil

	default:
		return nil, fmt.Errorf("%w: tool %s not implemented", contractx.ErrInvalidArgs, name)
	}
}

// decodeAddressArgs accepts both the documented list shape
// {"addresses":[...]} and a single bare {"address": "..."} object, which
// some model outputs produce.
func decodeAddressArgs(raw string) (AddressArgs, error) {
	var list AddressArgs
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return AddressArgs{}, fmt.Errorf("%w: invalid address", contractx.ErrInvalidArgs)
	}
	if len(list.Addresses) > 0 {
		for _, a := range list.Addresses {
			if strings.TrimSpace(a.Address) == "" {
				return AddressArgs{}, fmt.Errorf("%w: invalid address", contractx.ErrInvalidArgs)
			}
		}
		return list, nil
	}

	var single contractx.Address
	if err := json.Unmarshal([]byte(raw), &single); err != nil || strings.TrimSpace(single.Address) == "" {
		return AddressArgs{}, fmt.Errorf("%w: invalid address", contractx.ErrInvalidArgs)
	}
	return AddressArgs{Addresses: []contractx.Address{single}}, nil
}
