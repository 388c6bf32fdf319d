package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wonny/creditpd/internal/serving"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes err as {"error": ..., "kind": ...} with its kind's status.
// Client input errors carry the decoder's text; other kinds do not leak it.
func RespondError(w http.ResponseWriter, err error) {
	se := serving.AsError(err)
	msg := se.Message
	if se.Kind == serving.KindClientInput && se.Err != nil {
		msg = fmt.Sprintf("%s: %v", se.Message, se.Err)
	}
	respondJSON(w, se.Status(), map[string]string{
		"error": msg,
		"kind":  string(se.Kind),
	})
}
