package blacklist

import (
	"encoding/json"
	"net/http"
)

type detailBody struct {
	Detail string `json:"detail"`
}

func writeRejection(w http.ResponseWriter, rej Rejection) {
	if rej.RetryAfter > 0 {
		w.Header().Set("Retry-After", formatSeconds(rej.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.Status)
	_ = json.NewEncoder(w).Encode(detailBody{Detail: rej.Detail})
}
