package models

type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func SuccessResponse() Response {
	return Response{OK: true}
}

func ErrorResponse(err string) Response {
	return Response{
		OK:    false,
		Error: err,
	}
}
