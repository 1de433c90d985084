package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type messageResp struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, kind orders.Kind, msg string) {
	writeJSON(w, code, messageResp{Message: msg, Kind: string(kind)})
}

// writeError maps an error kind to its status code. Store failures are logged, never echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := orders.KindOf(err)
	msg := "storage failure"
	var oe *orders.Error
	if errors.As(err, &oe) && kind != orders.KindStore {
		msg = oe.Message
	}

	code := http.StatusInternalServerError
	switch kind {
	case orders.KindValidation:
		code = http.StatusBadRequest
	case orders.KindNotFound:
		code = http.StatusNotFound
	case orders.KindConflict:
		code = http.StatusConflict
	default:
		log.Printf("request %s %s %s failed: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
	}
	writeMessage(w, code, kind, msg)
}
