package rtpstream

import "errors"

var errEmptyPayload = errors.New("rtpstream: empty packet payload")
