package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix is the namespace of every cache key.
const KeyPrefix = "poi"

// excludedParams never become part of a key.
var excludedParams = map[string]struct{}{
	"key": {},
	"sig": {},
}

// CacheKey identifies one cached page.
type CacheKey struct {
	// Endpoint is the API path (e.g. "/v5/place/text")
	Endpoint string

	// QueryParams are the request parameters
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: poi:endpoint:param1=val1:param2=val2
//
// Example:
//
//	poi:v5/place/text:page_num=1:page_size=25:region=榕江县:types=停车场
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			if _, skip := excludedParams[key]; skip {
				continue
			}
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
