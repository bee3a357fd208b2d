package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"google.golang.org/protobuf/proto"
)

// maxRequestBody caps JSON and protobuf request bodies. The largest request,
// a window definition, is well under 1 KiB.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

var errBodyTooLarge = errors.New("request body too large")

// isProtobuf reports whether the request carries a protobuf body. Media type
// parameters such as charset are ignored.
func isProtobuf(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	switch mt {
	case protobufContentType, "application/protobuf", "application/octet-stream":
		return true
	}
	return false
}

// readProto unmarshals the request body into msg. Bodies over
// maxRequestBody are rejected rather than truncated.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return err
	}
	if len(body) > maxRequestBody {
		return errBodyTooLarge
	}
	return proto.Unmarshal(body, msg)
}

func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
