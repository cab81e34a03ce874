// Package envelope defines the uniform reply shape returned by every
// backend command. The webview UI matches on the success bit and, on
// failure, on the error string, so error texts must stay stable.
package envelope

// Response is the `{success, data, error}` envelope. Exactly one of Data
// and Error is set; Data may also be absent on successes that carry no
// payload.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK returns a successful response carrying data.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Empty returns a successful response with no payload.
func Empty() Response {
	return Response{Success: true}
}

// Err returns a failed response with a human-readable message.
func Err(msg string) Response {
	return Response{Success: false, Error: msg}
}
