package connect

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrorHttp is the json error body returned by the front door, and the
// error type the provider client returns for non-2xx provider responses.
type ErrorHttp struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorHttp) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *ErrorHttp) SendJsonErr(w http.ResponseWriter) {

	w.Header().Set("Content-Type", "application/json")

	jsonErr, err := json.Marshal(e)
	if err != nil {
		slog.Error("error marshalling http error response to json", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code": 500,"message":"Internal Server Error"}`))
		return
	}

	w.WriteHeader(e.StatusCode)
	w.Write(jsonErr)
}
