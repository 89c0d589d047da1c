package utils

// ResponseData is the envelope every REST endpoint answers with.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results"`
}

// PanicIfNeeded hands the error to the recovery middleware, which turns
// GenericError values into proper HTTP responses.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
