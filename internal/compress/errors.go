package compress

import "errors"

var ErrUnknownCodec = errors.New("unknown codec")
