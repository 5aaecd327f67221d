package searchstate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// EncodeParams renders query params as a URL-encoded string, the form the
// search API accepts in its "params" field. Lists are comma-joined.
func EncodeParams(params map[string]any) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, formatParam(v))
	}
	return values.Encode()
}

func formatParam(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []string:
		return strings.Join(x, ",")
	default:
		return fmt.Sprint(x)
	}
}
