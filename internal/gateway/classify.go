package gateway

// Class groups status codes for display. It never drives control flow.
type Class string

const (
	ClassSuccess     Class = "success"
	ClassClientError Class = "client_error"
	ClassError       Class = "error"
)

func Classify(status int) Class {
	switch {
	case status >= 200 && status < 300:
		return ClassSuccess
	case status >= 400 && status < 500:
		return ClassClientError
	}
	return ClassError
}
