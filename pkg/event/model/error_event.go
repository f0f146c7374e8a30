package model

import (
	"unicode/utf8"

	enc "github.com/Avi18971911/flare/pkg/json_encoder"
)

const MaxStackLength = 8192

type ErrorEvent struct {
	Timestamp        int64
	Source           string
	Environment      string
	Release          string
	AppVersion       *string
	BuildNumber      *string
	RouteOrProcedure *string
	Screen           *string
	ErrorType        string
	Message          string
	Stack            *string
	HTTPStatus       *int
	RequestID        *string
	UserIDHash       *string
	Metadata         enc.Object
}

// ToValue builds the wire form of the event. Optional keys are omitted when unset.
func (e ErrorEvent) ToValue() enc.Object {
	obj := enc.Object{
		enc.Field("timestamp", enc.Int(e.Timestamp)),
		enc.Field("source", enc.String(e.Source)),
		enc.Field("environment", enc.String(e.Environment)),
		enc.Field("release", enc.String(e.Release)),
	}
	obj = appendOptionalString(obj, "app_version", e.AppVersion)
	obj = appendOptionalString(obj, "build_number", e.BuildNumber)
	obj = appendOptionalString(obj, "route_or_procedure", e.RouteOrProcedure)
	obj = appendOptionalString(obj, "screen", e.Screen)
	obj = append(obj,
		enc.Field("error_type", enc.String(e.ErrorType)),
		enc.Field("message", enc.String(e.Message)),
	)
	obj = appendOptionalString(obj, "stack", e.Stack)
	if e.HTTPStatus != nil {
		obj = append(obj, enc.Field("http_status", enc.Int(*e.HTTPStatus)))
	}
	obj = appendOptionalString(obj, "request_id", e.RequestID)
	obj = appendOptionalString(obj, "user_id_hash", e.UserIDHash)
	if e.Metadata != nil {
		obj = append(obj, enc.Field("metadata", e.Metadata))
	}
	return obj
}

func appendOptionalString(obj enc.Object, key string, value *string) enc.Object {
	if value == nil {
		return obj
	}
	return append(obj, enc.Field(key, enc.String(*value)))
}

// TruncateStack cuts stack to at most MaxStackLength characters.
func TruncateStack(stack string) string {
	if utf8.RuneCountInString(stack) <= MaxStackLength {
		return stack
	}
	count := 0
	for i := range stack {
		if count == MaxStackLength {
			return stack[:i]
		}
		count++
	}
	return stack
}

// EventsBody wraps events into a batch body: {"events":[...]}.
func EventsBody(events []ErrorEvent) []byte {
	list := make(enc.Array, len(events))
	for i, e := range events {
		list[i] = e.ToValue()
	}
	return enc.AppendValue(nil, enc.Object{enc.Field("events", list)})
}
