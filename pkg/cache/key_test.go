package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "endpoint only",
			key: CacheKey{
				Endpoint: "/v5/place/text",
			},
			want: "poi:v5/place/text",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Endpoint: "/v5/place/text",
				QueryParams: url.Values{
					"types":    []string{"停车场"},
					"region":   []string{"榕江县"},
					"page_num": []string{"2"},
				},
			},
			want: "poi:v5/place/text:page_num=2:region=榕江县:types=停车场",
		},
		{
			name: "api key excluded",
			key: CacheKey{
				Endpoint: "/v5/place/text",
				QueryParams: url.Values{
					"key":      []string{"secret"},
					"page_num": []string{"1"},
				},
			},
			want: "poi:v5/place/text:page_num=1",
		},
		{
			name: "empty endpoint",
			key:  CacheKey{},
			want: "poi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_DifferentKeysShareKey(t *testing.T) {
	a := CacheKey{Endpoint: "/v5/place/text", QueryParams: url.Values{"key": {"a"}, "page_num": {"1"}}}
	b := CacheKey{Endpoint: "/v5/place/text", QueryParams: url.Values{"key": {"b"}, "page_num": {"1"}}}

	if a.String() != b.String() {
		t.Errorf("keys differ only by api key but got %q and %q", a.String(), b.String())
	}
}
