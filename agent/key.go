package agent

import "strconv"

// RequestKey correlates every event of one in-flight request. The v1
// profile keys by correlation id string; v2 keys by a 64-bit request id.
// Exactly one of the two fields is set.
type RequestKey struct {
	CorrelationID string
	RequestID     int64
}

// KeyV1 builds a v1 key from a correlation id.
func KeyV1(correlationID string) RequestKey {
	return RequestKey{CorrelationID: correlationID}
}

// KeyV2 builds a v2 key from a request id.
func KeyV2(requestID int64) RequestKey {
	return RequestKey{RequestID: requestID}
}

// IsV2 reports whether the key belongs to the multiplexed profile.
func (k RequestKey) IsV2() bool { return k.CorrelationID == "" }

func (k RequestKey) String() string {
	if k.CorrelationID != "" {
		return k.CorrelationID
	}
	return strconv.FormatInt(k.RequestID, 10)
}
