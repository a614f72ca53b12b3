package api

import "encoding/json"

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// unwrap normalizes the server's response nesting. Endpoints are known to
// answer either {"data": {"data": X}} or {"data": X}, and a few return X
// bare. All shape tolerance lives here; callers always see X.
func unwrap(body []byte) json.RawMessage {
	var outer envelope
	if err := json.Unmarshal(body, &outer); err != nil || outer.Data == nil {
		return body
	}

	var inner envelope
	if err := json.Unmarshal(outer.Data, &inner); err == nil && inner.Data != nil {
		return inner.Data
	}

	return outer.Data
}

func decodePayload[T any](body []byte) (T, error) {
	var v T
	err := json.Unmarshal(unwrap(body), &v)
	return v, err
}
